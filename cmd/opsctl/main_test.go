package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	gosync "sync"
	"testing"

	"github.com/tidwall/gjson"
	"golang.org/x/tools/txtar"
	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// TestScripts runs every testdata/*.txt script against an in-process opsctl
// and a fake gists API.
func TestScripts(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txt")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scripts in testdata")
	}

	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	engine.Cmds["opsctl"] = opsctlCmd()
	engine.Cmds["capture"] = captureCmd()
	engine.Cmds["gist"] = gistCmd()

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".txt")
		t.Run(name, func(t *testing.T) {
			gists := newFakeGists(t)
			work := t.TempDir()
			env := []string{
				"WORK=" + work,
				"HOME=" + work,
				"NO_COLOR=1",
				"OPSCENTRE_DATA_DIR=" + filepath.Join(work, ".opscentre"),
				"OPSCENTRE_REMOTE_API_URL=" + gists.srv.URL,
				"GISTS_URL=" + gists.srv.URL,
			}

			s, err := script.NewState(context.Background(), work, env)
			if err != nil {
				t.Fatalf("NewState failed: %v", err)
			}
			a, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatalf("ParseFile failed: %v", err)
			}
			if err := s.ExtractFiles(a); err != nil {
				t.Fatalf("ExtractFiles failed: %v", err)
			}
			scripttest.Run(t, engine, s, file, bytes.NewReader(a.Comment))
		})
	}
}

// opsctlCmd runs one opsctl command line with the script's environment and
// working directory.
func opsctlCmd() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "run opsctl in-process",
			Args:    "args...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			restore, err := enterScript(s)
			if err != nil {
				return nil, err
			}
			defer restore()

			var stdout, stderr bytes.Buffer
			code := run(s.Context(), args, strings.NewReader(""), &stdout, &stderr)

			var runErr error
			if code != 0 {
				runErr = fmt.Errorf("exit status %d", code)
			}
			return func(*script.State) (string, string, error) {
				return stdout.String(), stderr.String(), runErr
			}, nil
		},
	)
}

// enterScript copies the script's HOME, NO_COLOR and OPSCENTRE_* variables
// into the process and moves into its working directory.
func enterScript(s *script.State) (func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(s.Getwd()); err != nil {
		return nil, err
	}

	saved := map[string]*string{}
	save := func(key string) {
		if _, ok := saved[key]; ok {
			return
		}
		if v, ok := os.LookupEnv(key); ok {
			saved[key] = &v
		} else {
			saved[key] = nil
		}
	}
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "OPSCENTRE_") {
			save(key)
			os.Unsetenv(key)
		}
	}
	for _, kv := range s.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if key == "HOME" || key == "NO_COLOR" || strings.HasPrefix(key, "OPSCENTRE_") {
			save(key)
			os.Setenv(key, value)
		}
	}

	return func() {
		for key, v := range saved {
			if v == nil {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, *v)
			}
		}
		_ = os.Chdir(cwd)
	}, nil
}

// captureCmd stores the first submatch of a pattern in the previous
// command's stdout as an environment variable.
func captureCmd() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "save a submatch of the last stdout in an env var",
			Args:    "name pattern",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 2 {
				return nil, script.ErrUsage
			}
			re, err := regexp.Compile(`(?m)` + args[1])
			if err != nil {
				return nil, err
			}
			m := re.FindStringSubmatch(s.Stdout())
			if len(m) < 2 {
				return nil, fmt.Errorf("no match for %q in stdout", args[1])
			}
			return nil, s.Setenv(args[0], m[1])
		},
	)
}

// gistCmd prints the stored content of a fake gist so scripts can check
// what a push uploaded.
func gistCmd() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "print the content of a fake gist",
			Args:    "id",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, script.ErrUsage
			}
			base, _ := s.LookupEnv("GISTS_URL")
			resp, err := http.Get(base + "/content/" + args[0])
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("gist %s: %s", args[0], resp.Status)
			}
			return func(*script.State) (string, string, error) {
				return string(body), "", nil
			}, nil
		},
	)
}

// fakeGists is an in-memory gists API that accepts any token except "bad".
type fakeGists struct {
	mu    gosync.Mutex
	gists map[string]string
	next  int
	srv   *httptest.Server
}

const fakeFile = `files.opscentre_data\.json.content`

func newFakeGists(t *testing.T) *fakeGists {
	t.Helper()
	f := &fakeGists{gists: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gists", f.create)
	mux.HandleFunc("GET /gists/{id}", f.get)
	mux.HandleFunc("PATCH /gists/{id}", f.patch)
	mux.HandleFunc("GET /content/{id}", f.content)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGists) authorized(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || auth == "Bearer bad" {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeGists) create(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.next++
	id := fmt.Sprintf("%032x", f.next)
	f.gists[id] = gjson.GetBytes(body, fakeFile).String()
	f.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (f *fakeGists) get(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	content, ok := f.gists[id]
	f.mu.Unlock()
	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id": id,
		"files": map[string]any{
			"opscentre_data.json": map[string]any{"content": content},
		},
	})
}

func (f *fakeGists) patch(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	id := r.PathValue("id")
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.gists[id]; !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	f.gists[id] = gjson.GetBytes(body, fakeFile).String()
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (f *fakeGists) content(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	content, ok := f.gists[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = io.WriteString(w, content)
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Setenv("OPSCENTRE_DATA_DIR", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"frobnicate"}, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("run returned %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Errorf("stderr = %q, want unknown command error", stderr.String())
	}
}

func TestRun_Help(t *testing.T) {
	t.Setenv("OPSCENTRE_DATA_DIR", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--help"}, strings.NewReader(""), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run returned %d: %s", code, stderr.String())
	}
	for _, want := range []string{"task", "note", "doc", "sync", "daemon"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "01234567"},
	}
	for _, tt := range tests {
		if got := shortID(tt.in); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "****"},
		{"ghp_abcdefghij", "ghp_****ij"},
	}
	for _, tt := range tests {
		if got := maskToken(tt.in); got != tt.want {
			t.Errorf("maskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
