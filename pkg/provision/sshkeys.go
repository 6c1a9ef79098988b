package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/AriGonz/pvekit/pkg/fetch"
)

// SSHKeysTask fetches an authorized_keys file from a remote URL,
// optionally verifies its SHA-256, validates every key, and merges the
// novel ones into the target authorized_keys file. Existing entries are
// preserved in place and never duplicated.
type SSHKeysTask struct {
	Fetcher  *fetch.Fetcher
	URL      string
	SHA256   string
	KeysPath string
	DryRun   bool
}

// NewSSHKeysTask creates a task installing keys for the given account.
func NewSSHKeysTask(fetcher *fetch.Fetcher, url, sha256hex, user string) *SSHKeysTask {
	return &SSHKeysTask{
		Fetcher:  fetcher,
		URL:      url,
		SHA256:   sha256hex,
		KeysPath: AuthorizedKeysPath(user),
	}
}

// AuthorizedKeysPath returns the authorized_keys location for a user.
func AuthorizedKeysPath(user string) string {
	if user == "" || user == "root" {
		return "/root/.ssh/authorized_keys"
	}
	return filepath.Join("/home", user, ".ssh", "authorized_keys")
}

func (t *SSHKeysTask) Name() string { return "ssh-keys" }

func (t *SSHKeysTask) Description() string {
	return "Install SSH public keys from a remote URL"
}

func (t *SSHKeysTask) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("no key URL configured, set ssh_keys.url or PVEKIT_SSH_KEYS_URL")
	}
	if t.KeysPath == "" {
		return fmt.Errorf("no authorized_keys path set")
	}
	return nil
}

func (t *SSHKeysTask) Apply(ctx context.Context) (TaskResult, error) {
	result := newTaskResult(t.Name())

	data, err := t.Fetcher.BytesVerified(ctx, t.URL, t.SHA256)
	if err != nil {
		return result, result.fail("fetch keys", err)
	}
	result.record("fetch keys", StepUnchanged, fmt.Sprintf("%d bytes from %s", len(data), t.URL))

	keys, err := parseAuthorizedKeys(string(data))
	if err != nil {
		return result, result.fail("validate keys", err)
	}
	if len(keys) == 0 {
		return result, result.fail("validate keys", fmt.Errorf("no keys in fetched file"))
	}
	result.record("validate keys", StepUnchanged, fmt.Sprintf("%d valid keys", len(keys)))

	if err := t.merge(&result, keys); err != nil {
		return result, err
	}
	return result, nil
}

// authorizedKey is one validated public key line.
type authorizedKey struct {
	line        string
	fingerprint string
}

// parseAuthorizedKeys validates every key line in an authorized_keys
// payload. Blank lines and comments are ignored; any invalid key line is
// an error, since a silently dropped key locks the operator out later.
func parseAuthorizedKeys(contents string) ([]authorizedKey, error) {
	var keys []authorizedKey
	for i, line := range strings.Split(contents, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(trimmed))
		if err != nil {
			return nil, fmt.Errorf("invalid public key on line %d: %w", i+1, err)
		}
		keys = append(keys, authorizedKey{
			line:        trimmed,
			fingerprint: ssh.FingerprintSHA256(pub),
		})
	}
	return keys, nil
}

// merge appends the keys missing from the target file.
func (t *SSHKeysTask) merge(result *TaskResult, keys []authorizedKey) error {
	const step = "merge keys"

	existing := ""
	if data, err := os.ReadFile(t.KeysPath); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return result.fail(step, err)
	}

	present := map[string]bool{}
	for _, line := range strings.Split(existing, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(trimmed)); err == nil {
			present[ssh.FingerprintSHA256(pub)] = true
		}
	}

	var novel []string
	for _, key := range keys {
		if !present[key.fingerprint] {
			novel = append(novel, key.line)
			present[key.fingerprint] = true
		}
	}
	if len(novel) == 0 {
		result.record(step, StepUnchanged, "all keys already installed")
		return nil
	}

	if t.DryRun {
		result.record(step, StepApplied, fmt.Sprintf("would add %d keys (dry run)", len(novel)))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.KeysPath), 0700); err != nil {
		return result.fail(step, err)
	}
	if existing != "" {
		if _, err := backupFile(t.KeysPath); err != nil {
			return result.fail(step, err)
		}
	}

	merged := existing
	if merged != "" && !strings.HasSuffix(merged, "\n") {
		merged += "\n"
	}
	merged += strings.Join(novel, "\n") + "\n"

	if err := os.WriteFile(t.KeysPath, []byte(merged), 0600); err != nil {
		return result.fail(step, err)
	}
	result.record(step, StepApplied, fmt.Sprintf("added %d keys", len(novel)))
	return nil
}
