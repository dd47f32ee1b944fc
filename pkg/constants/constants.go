package constants

type ContextKey string

const (
	AppKey       ContextKey = "app"
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	LoggerKey    ContextKey = "logger"
	ParamsKey    ContextKey = "params"
	TenantKey    ContextKey = "tenant"
	UserKey      ContextKey = "user"
	SessionKey   ContextKey = "session"
	RequestStart ContextKey = "requestStart"
)
