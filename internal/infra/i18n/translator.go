package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultLang is used when the requested locale file does not exist.
const DefaultLang = "en"

// Translator resolves user-visible message keys to text.
type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys, falling back to DefaultLang.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	data, err := fs.ReadFile(fsys, path.Join("locales", langCode+".yaml"))
	if err != nil && langCode != DefaultLang {
		langCode = DefaultLang
		data, err = fs.ReadFile(fsys, path.Join("locales", DefaultLang+".yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file for %q: %w", langCode, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the text for key, formatted with args. Unknown keys are returned as-is.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Lang() string { return t.lang }
