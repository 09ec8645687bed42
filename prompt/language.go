package prompt

import "fmt"

// Supported language codes. Anything else falls back to English.
const (
	LangEnglish  = "en"
	LangChinese  = "zh"
	LangJapanese = "ja"
)

// ResolveLanguage applies the three-way precedence for the output language:
// a per-contact override wins over the configured system language, which
// wins over the English fallback. "auto" means no override.
func ResolveLanguage(override, system string) string {
	if override != "" && override != "auto" {
		return override
	}
	if system != "" {
		return system
	}
	return LangEnglish
}

// LanguageName maps a language code to the name the model is instructed
// with.
func LanguageName(code string) string {
	switch code {
	case LangChinese:
		return "Simplified Chinese (简体中文)"
	case LangJapanese:
		return "Japanese (日本語)"
	default:
		return "English"
	}
}

// LanguageDirective is the framing line forcing the output language.
func LanguageDirective(code string) string {
	name := LanguageName(code)
	return fmt.Sprintf("\n[PROTOCOL] Output Language: %s. You MUST reply in %s.", name, name)
}

// MissingKeyNotice is the localized message shown in place of a reply when
// no API credential is configured.
func MissingKeyNotice(code string) string {
	switch code {
	case LangChinese:
		return "系统提示：请先在「设置」中配置 API Key。"
	case LangJapanese:
		return "システム：先に「設定」で API キーを設定してください。"
	default:
		return "System: please configure an API Key in Settings first."
	}
}

// NoSignal is the localized filler substituted when the provider answers
// with empty text.
func NoSignal(code string) string {
	switch code {
	case LangChinese:
		return "（信号丢失……）"
	case LangJapanese:
		return "（シグナルロスト……）"
	default:
		return "(signal lost...)"
	}
}
