package tools

// Config holds tuning limits shared by the tool executors.
type Config struct {
	WebSearchDefaultLimit int
	WebSearchMaxLimit     int

	FetchMaxBodyBytes int64
	FetchMaxChars     int

	ImageSizes []string
	Voices     []string
}

// DefaultConfig returns the default tool configuration.
func DefaultConfig() *Config {
	return &Config{
		WebSearchDefaultLimit: 5,
		WebSearchMaxLimit:     10,
		FetchMaxBodyBytes:     2 << 20, // 2MB of HTML is plenty for one page
		FetchMaxChars:         20000,
		ImageSizes:            []string{"512x512", "1024x1024", "1792x1024"},
		Voices:                []string{"alloy", "verse", "sage"},
	}
}
