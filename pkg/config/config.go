// Package config provides the explicit, non-reflective environment binding
// primitives every service's bootstrap.Config.LoadFromEnv uses, replacing
// the teacher's reflection-based SetConfigFromEnvVars per the config-binding
// redesign flag.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
)

// RequireEnv returns the env var's value or panics, matching the teacher's
// InitConsumer() panic-on-required-missing-var policy.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("config: required environment variable %s is not set", key))
	}

	return val
}

// OptionalEnv returns the env var's value or defaultValue.
func OptionalEnv(key, defaultValue string) string {
	return common.GetenvOrDefault(key, defaultValue)
}

// OptionalEnvInt returns the env var's value as int64 or defaultValue.
func OptionalEnvInt(key string, defaultValue int64) int64 {
	return common.GetenvIntOrDefault(key, defaultValue)
}

// OptionalEnvBool returns the env var's value as bool or defaultValue.
func OptionalEnvBool(key string, defaultValue bool) bool {
	return common.GetenvBoolOrDefault(key, defaultValue)
}

// OptionalEnvDuration returns the env var parsed as a time.Duration, or
// defaultValue if unset/unparseable.
func OptionalEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return d
}

// KafkaTopics names the bus topics bound 1:1 onto the amqp091-go
// connection/consumer knobs, per SPEC_FULL.md §6's environment record.
type KafkaTopics struct {
	OrderCommandCreate string
	OrderEvents        string
	PaymentEvents      string
	InventoryEvents    string
	ShippingEvents     string
}

// Kafka mirrors SPEC_FULL.md §6's `kafka{...}` config record (retargeted to
// RABBITMQ_URL per §10's transport choice; field names kept so the
// environment variable surface matches the spec's naming exactly).
type Kafka struct {
	Bootstrap         string
	ClientID          string
	GroupID           string
	Acks              string
	CompressionType   string
	BatchSize         int64
	LingerMs          int64
	DeliveryTimeoutMs int64
	MaxPollRecords    int64
	FetchMaxWaitMs    int64
	CommitInterval    time.Duration
	Topics            KafkaTopics
}

// LoadKafka binds the Kafka record from environment variables prefixed by
// prefix (e.g. "KAFKA_").
func LoadKafka(prefix string) Kafka {
	return Kafka{
		Bootstrap:         RequireEnv(prefix + "BOOTSTRAP"),
		ClientID:          OptionalEnv(prefix+"CLIENT_ID", "order-platform"),
		GroupID:           OptionalEnv(prefix+"GROUP_ID", "order-platform"),
		Acks:              OptionalEnv(prefix+"ACKS", "all"),
		CompressionType:   OptionalEnv(prefix+"COMPRESSION_TYPE", "none"),
		BatchSize:         OptionalEnvInt(prefix+"BATCH_SIZE", 100),
		LingerMs:          OptionalEnvInt(prefix+"LINGER_MS", 5),
		DeliveryTimeoutMs: OptionalEnvInt(prefix+"DELIVERY_TIMEOUT_MS", 30000),
		MaxPollRecords:    OptionalEnvInt(prefix+"MAX_POLL_RECORDS", 500),
		FetchMaxWaitMs:    OptionalEnvInt(prefix+"FETCH_MAX_WAIT_MS", 500),
		CommitInterval:    OptionalEnvDuration(prefix+"COMMIT_INTERVAL", 2*time.Second),
		Topics: KafkaTopics{
			OrderCommandCreate: OptionalEnv(prefix+"TOPIC_ORDER_COMMAND_CREATE", "order.command.create.v1"),
			OrderEvents:        OptionalEnv(prefix+"TOPIC_ORDER_EVENTS", "order.events.v1"),
			PaymentEvents:      OptionalEnv(prefix+"TOPIC_PAYMENT_EVENTS", "payment.events.v1"),
			InventoryEvents:    OptionalEnv(prefix+"TOPIC_INVENTORY_EVENTS", "inventory.events.v1"),
			ShippingEvents:     OptionalEnv(prefix+"TOPIC_SHIPPING_EVENTS", "shipping.events.v1"),
		},
	}
}

// Authz mirrors SPEC_FULL.md §6's `security.authz{...}` config record.
type Authz struct {
	TenantClaim                  string
	ScopeAuthorityPrefix         string
	TenantRoleAuthorityPattern   string
	KeycloakTenantResourcePrefix string
	MapAudienceToAuthorities     bool
	AudienceAuthorityPrefix      string
	TenantHeader                 string
}

// LoadAuthz binds the Authz record from environment variables prefixed by
// prefix (e.g. "SECURITY_AUTHZ_").
func LoadAuthz(prefix string) Authz {
	return Authz{
		TenantClaim:                  OptionalEnv(prefix+"TENANT_CLAIM", "mt"),
		ScopeAuthorityPrefix:         OptionalEnv(prefix+"SCOPE_AUTHORITY_PREFIX", "SCOPE_"),
		TenantRoleAuthorityPattern:   OptionalEnv(prefix+"TENANT_ROLE_AUTHORITY_PATTERN", "TENANT_%s:%s"),
		KeycloakTenantResourcePrefix: OptionalEnv(prefix+"KEYCLOAK_TENANT_RESOURCE_PREFIX", "tenant-"),
		MapAudienceToAuthorities:     OptionalEnvBool(prefix+"MAP_AUDIENCE_TO_AUTHORITIES", false),
		AudienceAuthorityPrefix:      OptionalEnv(prefix+"AUDIENCE_AUTHORITY_PREFIX", "AUD_"),
		TenantHeader:                 OptionalEnv(prefix+"TENANT_HEADER", "X-Tenant-ID"),
	}
}

// FakeProviderConfig mirrors SPEC_FULL.md §6's `provider.fake{...}` record.
type FakeProviderConfig struct {
	Enabled        bool
	MinLatency     time.Duration
	MaxLatency     time.Duration
	MaxAmountMinor int64
	RiskModulo     int64
}

// LoadFakeProvider binds the provider.fake record from environment
// variables prefixed by prefix (e.g. "PROVIDER_FAKE_"). Adyen/Stripe are
// deliberately not bound here: they are config placeholders per SPEC_FULL.md
// §1's non-goal on concrete payment-provider integrations.
func LoadFakeProvider(prefix string) FakeProviderConfig {
	return FakeProviderConfig{
		Enabled:        OptionalEnvBool(prefix+"ENABLED", true),
		MinLatency:     OptionalEnvDuration(prefix+"MIN_LATENCY", 10*time.Millisecond),
		MaxLatency:     OptionalEnvDuration(prefix+"MAX_LATENCY", 150*time.Millisecond),
		MaxAmountMinor: OptionalEnvInt(prefix+"MAX_AMOUNT_MINOR", 10_000_00),
		RiskModulo:     OptionalEnvInt(prefix+"RISK_MODULO", 7),
	}
}

// FakeStockConfig mirrors the `stock.fake{...}` config record, the
// inventory-side analogue of FakeProviderConfig.
type FakeStockConfig struct {
	Enabled            bool
	InsufficientModulo int64
}

// LoadFakeStock binds the stock.fake record from environment variables
// prefixed by prefix (e.g. "STOCK_FAKE_").
func LoadFakeStock(prefix string) FakeStockConfig {
	return FakeStockConfig{
		Enabled:            OptionalEnvBool(prefix+"ENABLED", true),
		InsufficientModulo: OptionalEnvInt(prefix+"INSUFFICIENT_MODULO", 11),
	}
}

// FakeShippingConfig mirrors the `shipping.fake{...}` config record, the
// shipping-side analogue of FakeProviderConfig/FakeStockConfig.
type FakeShippingConfig struct {
	Enabled       bool
	FailureModulo int64
}

// LoadFakeShipping binds the shipping.fake record from environment
// variables prefixed by prefix (e.g. "SHIPPING_FAKE_").
func LoadFakeShipping(prefix string) FakeShippingConfig {
	return FakeShippingConfig{
		Enabled:       OptionalEnvBool(prefix+"ENABLED", true),
		FailureModulo: OptionalEnvInt(prefix+"FAILURE_MODULO", 13),
	}
}

// JWT mirrors SPEC_FULL.md §6's `security.jwt.*` config keys.
type JWT struct {
	Issuer              string
	KeyRotationInterval time.Duration
	AccessTokenTTL      time.Duration
	JWKSCacheDuration   time.Duration
}

// LoadJWT binds the JWT record from environment variables prefixed by
// prefix (e.g. "SECURITY_JWT_").
func LoadJWT(prefix string) JWT {
	return JWT{
		Issuer:              OptionalEnv(prefix+"ISSUER", "order-platform"),
		KeyRotationInterval: OptionalEnvDuration(prefix+"KEY_ROTATION_INTERVAL", 24*time.Hour),
		AccessTokenTTL:      OptionalEnvDuration(prefix+"ACCESS_TOKEN_TTL", time.Hour),
		JWKSCacheDuration:   OptionalEnvDuration(prefix+"JWKS_CACHE_DURATION", 10*time.Minute),
	}
}
