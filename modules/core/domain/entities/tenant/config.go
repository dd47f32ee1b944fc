package tenant

// Branding holds per-tenant look and feel served to the tenant's pages.
type Branding struct {
	PrimaryColor   string
	SecondaryColor string
	LogoURL        string
	FaviconURL     string
	CustomCSS      string
}

// Config is the per-tenant configuration block. Limits are advisory at read
// time; enforcement re-checks durable storage at the limiting write.
type Config struct {
	MaxUsers         int
	MaxHorses        int
	StorageLimitMB   int64
	AdvancedFeatures bool
	Branding         Branding
	FeatureFlags     map[string]bool
	Metadata         map[string]string
}

func DefaultConfig() Config {
	return Config{
		MaxUsers:       25,
		MaxHorses:      200,
		StorageLimitMB: 10240,
		FeatureFlags:   map[string]bool{},
		Metadata:       map[string]string{},
	}
}

func (c Config) FeatureEnabled(flag string) bool {
	return c.FeatureFlags[flag]
}
