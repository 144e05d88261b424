// Package blocks reads and writes the fenced code blocks canvas nodes use to carry script
// source, script settings and connection points.
package blocks

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	SettingsTag        = "canvasblocksettings"
	ConnectionPointTag = "canvasblockconnectionpoint"

	scriptTagSuffix = "canvasblock"
)

// Language is a scripting language a script block can be written in.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
)

// Languages lists the recognised script languages in order of preference.
var Languages = []Language{LanguagePython, LanguageJavaScript}

var languageTagPrefix = map[Language]string{
	LanguagePython:     "py",
	LanguageJavaScript: "js",
}

var (
	// ErrBlockNotFound indicates the text has no block with the requested tag.
	ErrBlockNotFound = errors.New("block not found")

	// ErrMalformedBlock indicates a block whose payload cannot be decoded.
	ErrMalformedBlock = errors.New("malformed block")
)

// ParseError reports a block payload that failed to decode or validate.
type ParseError struct {
	Tag string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s block: %v: %v", e.Tag, ErrMalformedBlock, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedBlock
}

// ScriptTag returns the block tag used for scripts written in language.
func ScriptTag(language Language) string {
	return languageTagPrefix[language] + scriptTagSuffix
}

var patterns sync.Map

func pattern(tag string) *regexp.Regexp {
	if cached, ok := patterns.Load(tag); ok {
		return cached.(*regexp.Regexp)
	}

	compiled := regexp.MustCompile("```\\s*" + regexp.QuoteMeta(tag) + "\\s*([\\s\\S]*?)```")
	actual, _ := patterns.LoadOrStore(tag, compiled)

	return actual.(*regexp.Regexp)
}

// Extract returns the payload of the first block tagged tag.
func Extract(text, tag string) (string, bool) {
	match := pattern(tag).FindStringSubmatch(text)
	if match == nil {
		return "", false
	}

	return match[1], true
}

// Contains reports whether text holds a block tagged tag.
func Contains(text, tag string) bool {
	return pattern(tag).MatchString(text)
}

// DetectLanguage returns the first language in preference order that has a script block
// in text.
func DetectLanguage(text string) (Language, bool) {
	for _, language := range Languages {
		if Contains(text, ScriptTag(language)) {
			return language, true
		}
	}

	return "", false
}

// ContainsScript reports whether text holds a script block in any recognised language.
func ContainsScript(text string) bool {
	_, ok := DetectLanguage(text)

	return ok
}

// ExtractScript returns the verbatim source of the first script block for language.
func ExtractScript(text string, language Language) (string, bool) {
	return Extract(text, ScriptTag(language))
}

// Fence wraps payload in a block tagged tag.
func Fence(tag, payload string) string {
	var b strings.Builder

	b.WriteString("```")
	b.WriteString(tag)
	b.WriteString("\n")
	b.WriteString(payload)

	if !strings.HasSuffix(payload, "\n") {
		b.WriteString("\n")
	}

	b.WriteString("```")

	return b.String()
}
