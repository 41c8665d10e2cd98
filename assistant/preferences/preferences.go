// Package preferences stores the user's local settings as loosely typed
// key/value pairs. Reads coerce to the requested type and fall back to a
// default whenever the stored value is missing or unusable.
package preferences

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Setting keys
const (
	KeyInputLang     = "settings.inputLang"
	KeyTargetLang    = "settings.targetLang"
	KeyAutoTranslate = "settings.autoTranslate"
	KeyTTSAutoPlay   = "settings.ttsAutoPlay"
	KeyFastMode      = "settings.fastMode"
	KeyOCRLang       = "settings.ocrLang"
	KeyOCRTranslate  = "settings.ocrTranslateLang"
	KeyFontScale     = "settings.fontScale"
	KeyTTSVoiceURI   = "settings.ttsVoiceURI"
	KeyTheme         = "theme"
)

// Defaults holds the value every known key reads as when unset
var Defaults = map[string]any{
	KeyInputLang:     "en",
	KeyTargetLang:    "en",
	KeyAutoTranslate: false,
	KeyTTSAutoPlay:   false,
	KeyFastMode:      true,
	KeyOCRLang:       "en",
	KeyOCRTranslate:  "",
	KeyFontScale:     1.0,
	KeyTTSVoiceURI:   "",
}

// Font scale bounds and step used by the text size controls
const (
	MinFontScale  = 0.9
	MaxFontScale  = 1.3
	FontScaleStep = 0.1
)

// Store is a flat key/value settings store
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Delete(key string) error
	Keys() []string
}

// MemoryStore keeps settings in memory
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

func (m *MemoryStore) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.values)
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String reads key as a string
func String(s Store, key, def string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case bool, int, int64, float64:
		return stringify(t)
	}
	return def
}

// Bool reads key as a bool; "true"/"false" strings are accepted
func Bool(s Store, key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

// Float reads key as a number; numeric strings are accepted
func Float(s Store, key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return finite(t, def)
	case float32:
		return finite(float64(t), def)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return finite(f, def)
		}
	}
	return def
}

func finite(f, def float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func stringify(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// Preferences is the typed view of every known setting
type Preferences struct {
	InputLang     string
	TargetLang    string
	AutoTranslate bool
	TTSAutoPlay   bool
	FastMode      bool
	OCRLang       string
	FontScale     float64
	TTSVoiceURI   string
}

// Load reads every known setting with its default
func Load(s Store) Preferences {
	return Preferences{
		InputLang:     String(s, KeyInputLang, Defaults[KeyInputLang].(string)),
		TargetLang:    String(s, KeyTargetLang, Defaults[KeyTargetLang].(string)),
		AutoTranslate: Bool(s, KeyAutoTranslate, Defaults[KeyAutoTranslate].(bool)),
		TTSAutoPlay:   Bool(s, KeyTTSAutoPlay, Defaults[KeyTTSAutoPlay].(bool)),
		FastMode:      Bool(s, KeyFastMode, Defaults[KeyFastMode].(bool)),
		OCRLang:       String(s, KeyOCRLang, Defaults[KeyOCRLang].(string)),
		FontScale:     Float(s, KeyFontScale, Defaults[KeyFontScale].(float64)),
		TTSVoiceURI:   String(s, KeyTTSVoiceURI, Defaults[KeyTTSVoiceURI].(string)),
	}
}

// FontPixels converts a font scale to the root font size in pixels, 14 to 20
func FontPixels(scale float64) int {
	px := int(math.Round(16 * scale))
	return max(14, min(20, px))
}

// StepFontScale moves scale by delta steps, rounded to two decimals and kept
// within MinFontScale..MaxFontScale
func StepFontScale(scale float64, delta int) float64 {
	next := math.Round((scale+float64(delta)*FontScaleStep)*100) / 100
	return math.Max(MinFontScale, math.Min(MaxFontScale, next))
}

// Clear removes every key except the theme
func Clear(s Store) error {
	for _, k := range s.Keys() {
		if k == KeyTheme {
			continue
		}
		if err := s.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
