package screen

import "github.com/harrylevesque/scanrelay/internal/scanner"

// FormatKeyboard is reported for codes typed by a keyboard-wedge scanner.
const FormatKeyboard = "KEYBOARD"

// KeyboardScanner is a keyboard-wedge scanner typing into the screen. The
// screen feeds it every completed line; it holds no device of its own.
type KeyboardScanner struct {
	scanner.Gate
}

func NewKeyboardScanner() *KeyboardScanner { return &KeyboardScanner{} }

func (k *KeyboardScanner) StartPreview() error {
	k.Arm()
	return nil
}

func (k *KeyboardScanner) ReleaseResources() { k.Disarm() }

// Submit delivers a completed line. It reports false when the scanner is not
// armed and the line was discarded.
func (k *KeyboardScanner) Submit(text string) bool {
	return k.Deliver(scanner.Result{Text: text, Format: FormatKeyboard})
}
