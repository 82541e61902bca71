package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/credentials"
	"github.com/bobmcallan/surveylens/internal/storage"
)

func TestNewApp_LoadsEnvAndConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "surveylens.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[api]
base_url = "http://backend.test"

[poll]
interval = "5s"

[export]
legacy_parsing = true
text_width = 72
`), 0o644))

	envPath := filepath.Join(dir, ".env")
	credPath := filepath.Join(dir, "creds", "credentials.json")
	require.NoError(t, os.WriteFile(envPath, []byte("SURVEYLENS_CREDENTIALS="+credPath+"\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SURVEYLENS_CREDENTIALS") })

	a, err := NewApp(Options{ConfigPath: cfgPath, EnvFile: envPath, LogLevel: "error"})
	require.NoError(t, err)

	assert.Equal(t, "http://backend.test", a.Client.BaseURL())
	assert.Equal(t, credPath, a.Config.Auth.CredentialsPath, ".env feeds env overrides")
	assert.Equal(t, "error", a.Config.Logging.Level)
	assert.True(t, a.DecodeOptions().Legacy)
	assert.Equal(t, 72, a.TextLayout().Width)
	assert.Equal(t, 5*time.Second, a.Config.Poll.GetInterval())

	fs, ok := a.Credentials.(*credentials.FileStore)
	require.True(t, ok)
	assert.Equal(t, credPath, fs.Path())
}

func TestNewApp_MissingEnvFileIsFine(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SURVEYLENS_CREDENTIALS", filepath.Join(dir, "c.json"))

	_, err := NewApp(Options{ConfigPath: filepath.Join(dir, "absent.toml"), EnvFile: filepath.Join(dir, "absent.env")})
	assert.NoError(t, err)
}

func TestApp_NewSink(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Export.Dir = t.TempDir()
	a := New(cfg, common.NewSilentLogger(), credentials.NewMemoryStore("", ""))

	sink, err := a.NewSink(context.Background(), false)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileSink{}, sink)

	_, err = a.NewSink(context.Background(), true)
	assert.Error(t, err, "publishing needs an S3 bucket")
}

func TestApp_NewController(t *testing.T) {
	a := New(common.NewDefaultConfig(), common.NewSilentLogger(), credentials.NewMemoryStore("", ""))
	c := a.NewController("s1", nil)
	assert.Equal(t, "s1", c.SurveyID())
	assert.False(t, c.Polling())
}
