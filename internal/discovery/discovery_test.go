package discovery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers commands from a table keyed by "name arg1 arg2 ...".
// Unknown commands fail as if the binary were missing.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, _, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	if out, ok := f.outputs[key]; ok {
		return out, nil
	}
	return "", exec.ErrNotFound
}

func gitRepo() *fakeRunner {
	return &fakeRunner{
		outputs: map[string]string{
			"git rev-parse HEAD":                          "abc123",
			"git status --porcelain --untracked-files=no": "",
			"git rev-parse --abbrev-ref HEAD":             "main",
			"git describe --tags --always":                "v1.2.3",
			"go env GOOS GOARCH GOVERSION":                "linux\namd64\ngo1.24.1",
			"go env CGO_ENABLED GOAMD64":                  "1\nv1",
			"go list -m":                                  "example.com/app",
		},
	}
}

func withVersion(v string) Config {
	cfg := DefaultConfig()
	cfg.PackageVersion = v
	return cfg
}

func TestRun_FullRepository(t *testing.T) {
	d := New(withVersion("1.2.3"), WithRunner(gitRepo()))

	facts, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", facts.PackageVersion)
	require.NotNil(t, facts.VCS)
	assert.Equal(t, "abc123", facts.VCS.Commit)
	assert.Equal(t, "main", facts.VCS.Branch)
	assert.False(t, facts.VCS.Dirty)
	assert.Equal(t, "v1.2.3", facts.VCS.Describe)
	assert.Equal(t, "linux", facts.OS)
	assert.Equal(t, "amd64", facts.Arch)
	assert.Equal(t, "go1.24.1", facts.CompilerVersion)
	assert.Equal(t, "CGO_ENABLED=1 GOAMD64=v1", facts.BuildFlags)
	assert.Equal(t, "example.com/app", facts.ModulePath)
	assert.Empty(t, facts.BuildID)
}

func TestRun_VCSFailuresAreTolerated(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"git missing", exec.ErrNotFound},
		{"not a repository", errors.New("fatal: not a git repository (or any of the parent directories): .git")},
		{"permission denied", os.ErrPermission},
		{"timed out", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := gitRepo()
			runner.errs = map[string]error{"git rev-parse HEAD": tt.err}

			facts, err := New(withVersion("0.1.0"), WithRunner(runner)).Run(context.Background())
			require.NoError(t, err)
			assert.Nil(t, facts.VCS)
			assert.Equal(t, "0.1.0", facts.PackageVersion)
		})
	}
}

func TestRun_StatusFailureDropsVCS(t *testing.T) {
	runner := gitRepo()
	runner.errs = map[string]error{"git status --porcelain --untracked-files=no": errors.New("index.lock exists")}

	facts, err := New(withVersion("0.1.0"), WithRunner(runner)).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, facts.VCS)
}

func TestRun_VCSDisabled(t *testing.T) {
	runner := gitRepo()
	cfg := withVersion("1.0.0")
	cfg.VCSEnabled = false

	facts, err := New(cfg, WithRunner(runner)).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, facts.VCS)
	for _, call := range runner.calls {
		assert.False(t, strings.HasPrefix(call, "git "), "unexpected call %q", call)
	}
}

func TestRun_DetachedHead(t *testing.T) {
	runner := gitRepo()
	runner.outputs["git rev-parse --abbrev-ref HEAD"] = "HEAD"
	delete(runner.outputs, "git describe --tags --always")

	facts, err := New(withVersion("1.0.0"), WithRunner(runner)).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, facts.VCS)
	assert.Empty(t, facts.VCS.Branch)
	assert.Empty(t, facts.VCS.Describe)
	assert.Equal(t, "abc123", facts.VCS.Commit)
}

func TestRun_DirtyPolicy(t *testing.T) {
	t.Run("modified tracked file", func(t *testing.T) {
		runner := gitRepo()
		runner.outputs["git status --porcelain --untracked-files=no"] = " M main.go"

		facts, err := New(withVersion("1.0.0"), WithRunner(runner)).Run(context.Background())
		require.NoError(t, err)
		assert.True(t, facts.VCS.Dirty)
	})

	t.Run("untracked files ignored by default", func(t *testing.T) {
		runner := gitRepo()
		runner.outputs["git status --porcelain"] = "?? scratch.txt"

		facts, err := New(withVersion("1.0.0"), WithRunner(runner)).Run(context.Background())
		require.NoError(t, err)
		assert.False(t, facts.VCS.Dirty)
	})

	t.Run("untracked files counted when enabled", func(t *testing.T) {
		runner := gitRepo()
		runner.outputs["git status --porcelain"] = "?? scratch.txt"
		cfg := withVersion("1.0.0")
		cfg.UntrackedDirty = true

		facts, err := New(cfg, WithRunner(runner)).Run(context.Background())
		require.NoError(t, err)
		assert.True(t, facts.VCS.Dirty)
	})
}

func TestRun_PackageVersion(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		file    *string
		want    string
		wantErr bool
	}{
		{name: "config wins", config: "2.0.0", file: ptr("1.0.0\n"), want: "2.0.0"},
		{name: "version file", file: ptr("1.4.2\n"), want: "1.4.2"},
		{name: "v prefix", file: ptr("v1.4.2"), want: "v1.4.2"},
		{name: "missing file", wantErr: true},
		{name: "empty file", file: ptr("  \n"), wantErr: true},
		{name: "not semver", file: ptr("latest"), wantErr: true},
		{name: "bad config", config: "1.2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.file != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte(*tt.file), 0o600))
			}
			cfg := withVersion(tt.config)
			cfg.Dir = dir

			facts, err := New(cfg, WithRunner(gitRepo())).Run(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPackageVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, facts.PackageVersion)
			assert.NotEmpty(t, facts.PackageVersion)
		})
	}
}

func TestRun_AbsoluteVersionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.txt")
	require.NoError(t, os.WriteFile(path, []byte("3.1.4"), 0o600))

	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.VersionFile = path

	facts, err := New(cfg, WithRunner(gitRepo())).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.1.4", facts.PackageVersion)
}

func TestRun_ToolchainFallback(t *testing.T) {
	runner := gitRepo()
	delete(runner.outputs, "go env GOOS GOARCH GOVERSION")
	delete(runner.outputs, "go list -m")

	facts, err := New(withVersion("1.0.0"), WithRunner(runner)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runtime.GOOS, facts.OS)
	assert.Equal(t, runtime.GOARCH, facts.Arch)
	assert.Equal(t, runtime.Version(), facts.CompilerVersion)
	assert.Empty(t, facts.ModulePath)
}

func TestRun_CrossCompileTarget(t *testing.T) {
	runner := gitRepo()
	runner.outputs["go env GOOS GOARCH GOVERSION"] = "windows\narm64\ngo1.24.1"

	facts, err := New(withVersion("1.0.0"), WithRunner(runner)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "windows", facts.OS)
	assert.Equal(t, "arm64", facts.Arch)
}

func TestRun_ModulePath(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		runner := gitRepo()
		cfg := withVersion("1.0.0")
		cfg.ModulePath = "example.com/override"

		facts, err := New(cfg, WithRunner(runner)).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "example.com/override", facts.ModulePath)
		assert.NotContains(t, runner.calls, "go list -m")
	})

	t.Run("workspace", func(t *testing.T) {
		runner := gitRepo()
		runner.outputs["go list -m"] = "example.com/a\nexample.com/b"

		facts, err := New(withVersion("1.0.0"), WithRunner(runner)).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, facts.ModulePath)
	})
}

func TestRun_StampBuildID(t *testing.T) {
	cfg := withVersion("1.0.0")
	cfg.StampBuildID = true

	facts, err := New(cfg, WithRunner(gitRepo())).Run(context.Background())
	require.NoError(t, err)
	_, err = uuid.Parse(facts.BuildID)
	assert.NoError(t, err)
}

func TestRun_MalformedCommitDropsVCS(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	runner := gitRepo()
	runner.outputs["git rev-parse HEAD"] = "not-hex"

	facts, err := New(withVersion("1.0.0"), WithRunner(runner), WithLogger(logger)).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, facts.VCS)
	assert.Equal(t, "1.0.0", facts.PackageVersion)
	assert.Contains(t, buf.String(), "unexpected version control output")
}

func TestRun_BuildFlags(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(*Config)
		outputs map[string]string
		missing []string
		want    string
	}{
		{
			name: "go env only",
			want: "CGO_ENABLED=1 GOAMD64=v1",
		},
		{
			name: "configured flags",
			cfg: func(c *Config) {
				c.Tags = []string{"netgo", "osusergo"}
				c.Race = true
				c.Trimpath = true
			},
			want: "-race=true -tags=netgo,osusergo -trimpath=true CGO_ENABLED=1 GOAMD64=v1",
		},
		{
			name: "arch level follows target",
			outputs: map[string]string{
				"go env GOOS GOARCH GOVERSION": "linux\narm\ngo1.24.1",
				"go env CGO_ENABLED GOARM":     "0\n7",
			},
			want: "CGO_ENABLED=0 GOARM=7",
		},
		{
			name: "arch without level",
			outputs: map[string]string{
				"go env GOOS GOARCH GOVERSION": "linux\ns390x\ngo1.24.1",
				"go env CGO_ENABLED":           "1",
			},
			want: "CGO_ENABLED=1",
		},
		{
			name:    "go env unavailable",
			cfg:     func(c *Config) { c.Tags = []string{"netgo"} },
			missing: []string{"go env CGO_ENABLED GOAMD64"},
			want:    "-tags=netgo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := gitRepo()
			for k, v := range tt.outputs {
				runner.outputs[k] = v
			}
			for _, k := range tt.missing {
				delete(runner.outputs, k)
			}
			cfg := withVersion("1.0.0")
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}

			facts, err := New(cfg, WithRunner(runner)).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, facts.BuildFlags)
		})
	}
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	runner := gitRepo()
	runner.errs = map[string]error{"git rev-parse HEAD": exec.ErrNotFound}

	_, err := New(withVersion("1.0.0"), WithRunner(runner), WithLogger(logger)).Run(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Version control information unavailable")
	assert.Contains(t, out, "Discovered build facts")
	assert.Contains(t, out, "vcs=false")
}

func TestNew_Defaults(t *testing.T) {
	d := New(Config{}, WithLogger(nil), WithRunner(nil))
	assert.Equal(t, "VERSION", d.cfg.VersionFile)
	assert.Equal(t, "git", d.cfg.GitPath)
	assert.Equal(t, "go", d.cfg.GoPath)
	assert.Equal(t, DefaultVCSTimeout, d.cfg.VCSTimeout)
	assert.False(t, d.cfg.VCSEnabled)
	assert.NotNil(t, d.logger)
	assert.IsType(t, ExecRunner{}, d.runner)
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := ExecRunner{}.Run(ctx, t.TempDir(), "go", "env", "GOOS")
	require.NoError(t, err)
	assert.Equal(t, runtime.GOOS, out)

	_, err = ExecRunner{}.Run(ctx, t.TempDir(), "go", "definitely-not-a-command")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely-not-a-command")
}

func ptr(s string) *string { return &s }
