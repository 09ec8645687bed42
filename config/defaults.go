package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/omniterm",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Provider: ProviderSettings{
			Kind:     "gemini",
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/models",
			Model:    "gemini-2.5-flash",
		},
		Security: SecuritySettings{
			Method: "plaintext",
		},
		Language:         "en",
		UseGlobalProfile: true,
	}
}

func GenerateSystemConfigTemplate() string {
	return `# OmniTerm System Configuration
# Location: ~/.config/omniterm/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations and user config are stored
data_directory = "~/.local/share/omniterm"
`
}

func GenerateUserConfigTemplate() string {
	return `# OmniTerm User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Output language for generated replies: "en", "zh", "ja"
language = "en"

# Use the global user profile in assistant framing instead of the
# active world's player profile
use_global_profile = true

[provider]
# Wire protocol: "openai" (any OpenAI-compatible endpoint) or "gemini"
kind = "gemini"

# Base endpoint URL (no trailing path for the model)
endpoint = "https://generativelanguage.googleapis.com/v1beta/models"

# Model name
model = "gemini-2.5-flash"

[security]
# Credential storage: "plaintext" or "ssh_key"
method = "plaintext"

# SSH private key used to encrypt credentials (ssh_key method only)
# ssh_key_path = "~/.ssh/id_ed25519"
`
}
