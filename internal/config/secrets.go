package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Deluthium.APIKey)
	redact(&out.Deluthium.KeyPassword)

	redact(&out.Clob.APIKey)
	redact(&out.Clob.APISecret)

	redact(&out.Redis.Password)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Bridge.Mappings != nil {
		out.Bridge.Mappings = make([]MappingConfig, len(cfg.Bridge.Mappings))
		copy(out.Bridge.Mappings, cfg.Bridge.Mappings)
	}
	if cfg.Arbitrage.Pairs != nil {
		out.Arbitrage.Pairs = make([]ArbPairConfig, len(cfg.Arbitrage.Pairs))
		copy(out.Arbitrage.Pairs, cfg.Arbitrage.Pairs)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
