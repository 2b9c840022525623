package localization

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed translations/*.yaml
var translationsFS embed.FS

// DefaultLanguage is used for every chat; other languages fall back to it.
const DefaultLanguage = "ru"

var Languages = []string{DefaultLanguage}

// Service holds flattened translations: "section.key" -> text.
type Service struct {
	translations map[string]map[string]string
}

func NewService() (*Service, error) {
	s := &Service{
		translations: make(map[string]map[string]string, len(Languages)),
	}

	for _, lang := range Languages {
		data, err := translationsFS.ReadFile(fmt.Sprintf("translations/%s.yaml", lang))
		if err != nil {
			return nil, fmt.Errorf("read %s translations: %w", lang, err)
		}

		var tree map[string]interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse %s translations: %w", lang, err)
		}

		flat := make(map[string]string)
		if err := flatten("", tree, flat); err != nil {
			return nil, fmt.Errorf("%s translations: %w", lang, err)
		}
		s.translations[lang] = flat
	}

	return s, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]interface{}:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %s: unsupported value %T", key, v)
		}
	}
	return nil
}

// Get returns the text for key with {{name}} placeholders replaced.
// Unknown languages fall back to DefaultLanguage; unknown keys return the key.
func (s *Service) Get(lang, key string, params map[string]interface{}) string {
	texts, ok := s.translations[lang]
	if !ok {
		texts = s.translations[DefaultLanguage]
	}

	text, ok := texts[key]
	if !ok {
		return key
	}

	return replacePlaceholders(text, params)
}

// Has reports whether key exists in the default language.
func (s *Service) Has(key string) bool {
	_, ok := s.translations[DefaultLanguage][key]
	return ok
}

// Keys lists every key of the default language, sorted.
func (s *Service) Keys() []string {
	keys := make([]string, 0, len(s.translations[DefaultLanguage]))
	for k := range s.translations[DefaultLanguage] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func replacePlaceholders(text string, params map[string]interface{}) string {
	if len(params) == 0 {
		return text
	}

	pairs := make([]string, 0, len(params)*2)
	for key, value := range params {
		pairs = append(pairs, "{{"+key+"}}", fmt.Sprint(value))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
