// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)

	// 验证浏览器默认值
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 60*time.Second, cfg.Browser.Timeout)

	// 验证服务登录默认值
	assert.Equal(t, "direct", cfg.Claude.AuthMethod)
	assert.Equal(t, "direct", cfg.ChatGPT.AuthMethod)

	// 验证缓存默认值
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, time.Hour, cfg.Cache.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MaxAge)

	// 验证 Redis 默认值
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	// 验证 Log 默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys:
    - sk-test

browser:
  headless: false
  viewport_width: 1280

claude:
  auth_method: "google"
  email: "user@example.com"
  session_dir: "/var/lib/webbridge"

cache:
  driver: "postgres"
  host: "db.example.com"
  port: 5432
  max_age: 48h

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"sk-test"}, cfg.Server.APIKeys)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)

	assert.Equal(t, "google", cfg.Claude.AuthMethod)
	assert.Equal(t, "user@example.com", cfg.Claude.Email)
	assert.Equal(t, "/var/lib/webbridge", cfg.Claude.SessionDir)

	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "db.example.com", cfg.Cache.Host)
	assert.Equal(t, 48*time.Hour, cfg.Cache.MaxAge)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	// 设置环境变量
	envVars := map[string]string{
		"WEBBRIDGE_SERVER_HTTP_PORT":   "7777",
		"WEBBRIDGE_BROWSER_HEADLESS":   "false",
		"WEBBRIDGE_CLAUDE_AUTH_METHOD": "google",
		"WEBBRIDGE_CACHE_DRIVER":       "redis",
		"WEBBRIDGE_CACHE_MAX_AGE":      "12h",
		"WEBBRIDGE_REDIS_ADDR":         "env-redis:6379",
		"WEBBRIDGE_LOG_LEVEL":          "warn",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	// 加载配置
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	// 验证环境变量覆盖了默认值
	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "google", cfg.Claude.AuthMethod)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
claude:
  email: "yaml@example.com"
  auth_method: "google"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 设置环境变量（应该覆盖 YAML）
	os.Setenv("WEBBRIDGE_SERVER_HTTP_PORT", "9999")
	os.Setenv("WEBBRIDGE_CLAUDE_EMAIL", "env@example.com")
	defer func() {
		os.Unsetenv("WEBBRIDGE_SERVER_HTTP_PORT")
		os.Unsetenv("WEBBRIDGE_CLAUDE_EMAIL")
	}()

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env@example.com", cfg.Claude.Email)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "google", cfg.Claude.AuthMethod)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	// 设置自定义前缀的环境变量
	os.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	defer os.Unsetenv("MYAPP_SERVER_HTTP_PORT")

	// 使用自定义前缀加载
	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_WithValidator(t *testing.T) {
	// 添加验证器
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	// 设置无效端口
	os.Setenv("WEBBRIDGE_SERVER_HTTP_PORT", "80")
	defer os.Unsetenv("WEBBRIDGE_SERVER_HTTP_PORT")

	// 加载应该失败
	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

// --- 验证测试 ---

func TestConfig_Validate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.HTTPPort = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad cache driver", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Cache.Driver = "etcd"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad auth method", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ChatGPT.AuthMethod = "saml"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive cleanup interval", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Cache.CleanupInterval = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive browser timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Browser.Timeout = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestCacheConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  CacheConfig
		want string
	}{
		{
			name: "sqlite",
			cfg:  CacheConfig{Driver: "sqlite", Path: "conversations.db"},
			want: "conversations.db",
		},
		{
			name: "postgres",
			cfg: CacheConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "wb", Password: "pw", Name: "cache", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=wb password=pw dbname=cache sslmode=disable",
		},
		{
			name: "mysql",
			cfg: CacheConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "wb", Password: "pw", Name: "cache",
			},
			want: "wb:pw@tcp(localhost:3306)/cache?parseTime=true",
		},
		{
			name: "redis has no dsn",
			cfg:  CacheConfig{Driver: "redis"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
