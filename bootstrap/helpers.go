package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
)

// DataDirectories defines the paths that need to exist for the SQLite engine.
type DataDirectories struct {
	Base   string // Base data directory (default: ./data)
	SQLite string // SQLite database path
}

// DefaultDataDirectories returns the default data directory configuration.
// This is used by commands that run before config is loaded.
func DefaultDataDirectories() DataDirectories {
	base := os.Getenv("ENTITYSVC_DATA_DIR")
	if base == "" {
		base = "./data"
	}

	sqlitePath := os.Getenv("ENTITYSVC_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = filepath.Join(base, "entitysvc.db")
	}

	return DataDirectories{Base: base, SQLite: sqlitePath}
}

// EnsureDataDirectories creates the directories holding the SQLite database
// and verifies they are writable.
func EnsureDataDirectories(dirs DataDirectories, sugar *zap.SugaredLogger) error {
	directoriesToCreate := []string{dirs.Base}
	if dirs.SQLite != "" && dirs.SQLite != ":memory:" {
		directoriesToCreate = append(directoriesToCreate, filepath.Dir(dirs.SQLite))
	}

	for _, dir := range directoriesToCreate {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w\n"+
				"  Remediation: Ensure the parent directory exists and is writable\n"+
				"  For Docker: Check volume mount permissions\n"+
				"  For bare metal: Run 'mkdir -p %s && chmod 755 %s'", dir, err, absPath, absPath)
		}

		// Verify write permissions
		testFile := filepath.Join(absPath, ".entitysvc_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("directory %s is not writable: %w\n"+
				"  Remediation: Check file system permissions\n"+
				"  For Docker: Ensure volume is mounted with write access\n"+
				"  For bare metal: Run 'chmod -R u+w %s'", dir, err, absPath)
		}
		os.Remove(testFile)

		sugar.Debugw("Data directory ready", "path", absPath)
	}
	return nil
}

// ClassifyConnectionError provides specific error messages based on the type
// of connection failure to a network dependency (MongoDB or Redis).
func ClassifyConnectionError(err error, service, addr string) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Connection to %s at %s timed out.\n"+
			"  Possible causes:\n"+
			"  - %s is starting up (wait and retry)\n"+
			"  - Network latency or firewall blocking the connection\n"+
			"  Remediation:\n"+
			"  - Verify network connectivity: nc -zv %s", service, addr, service, addr)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			(opErr.Err != nil && (containsIgnoreCase(opErr.Err.Error(), "connection refused") ||
				containsIgnoreCase(opErr.Err.Error(), "actively refused"))) {
			return fmt.Sprintf("Connection refused by %s at %s.\n"+
				"  This usually means %s is not running.\n"+
				"  Remediation:\n"+
				"  - Start %s and retry\n"+
				"  - Verify the address is correct in config.yaml", service, addr, service, service)
		}
	}

	if containsIgnoreCase(errStr, "connection refused") {
		return fmt.Sprintf("Connection refused by %s at %s.\n"+
			"  This usually means %s is not running.", service, addr, service)
	}

	if containsIgnoreCase(errStr, "no such host") || containsIgnoreCase(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in %s address %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname is correct\n"+
			"  - Check DNS configuration\n"+
			"  - Try using IP address (127.0.0.1) instead of hostname", service, addr)
	}

	if containsIgnoreCase(errStr, "authentication") || containsIgnoreCase(errStr, "password") || containsIgnoreCase(errStr, "denied") {
		return fmt.Sprintf("Authentication failed for %s at %s.\n"+
			"  Remediation:\n"+
			"  - Verify credentials in config.yaml or ENTITYSVC_* env vars", service, addr)
	}

	return fmt.Sprintf("Failed to connect to %s at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure %s is running and accessible\n"+
		"  - Verify network connectivity", service, addr, err, service)
}

// ClassifySQLiteError provides specific error messages based on the type of SQLite failure.
func ClassifySQLiteError(err error, dbPath string) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	absPath, _ := filepath.Abs(dbPath)
	parentDir := filepath.Dir(absPath)

	if containsIgnoreCase(errStr, "permission denied") || containsIgnoreCase(errStr, "access denied") {
		return fmt.Sprintf("Permission denied accessing SQLite database at %s.\n"+
			"  Remediation:\n"+
			"  - Check file permissions: ls -la %s\n"+
			"  - Check directory permissions: ls -la %s",
			absPath, absPath, parentDir)
	}

	if containsIgnoreCase(errStr, "database is locked") || containsIgnoreCase(errStr, "SQLITE_BUSY") {
		return fmt.Sprintf("SQLite database at %s is locked by another process.\n"+
			"  Remediation:\n"+
			"  - Check for other entitysvc processes: ps aux | grep entitysvc\n"+
			"  - Check for lock files: ls -la %s*", absPath, absPath)
	}

	if containsIgnoreCase(errStr, "disk full") || containsIgnoreCase(errStr, "no space") || containsIgnoreCase(errStr, "SQLITE_FULL") {
		return fmt.Sprintf("Disk full - cannot write to SQLite database at %s.\n"+
			"  Remediation:\n"+
			"  - Check available disk space: df -h %s", absPath, parentDir)
	}

	if containsIgnoreCase(errStr, "corrupt") || containsIgnoreCase(errStr, "malformed") || containsIgnoreCase(errStr, "SQLITE_CORRUPT") {
		return fmt.Sprintf("SQLite database at %s appears to be corrupted.\n"+
			"  CRITICAL: Backup any existing data before proceeding!\n"+
			"  Check integrity: sqlite3 %s \"PRAGMA integrity_check;\"",
			absPath, absPath)
	}

	if containsIgnoreCase(errStr, "no such file or directory") || containsIgnoreCase(errStr, "cannot find the path") {
		return fmt.Sprintf("Cannot create SQLite database - path does not exist: %s.\n"+
			"  Remediation:\n"+
			"  - Create the parent directory: mkdir -p %s\n"+
			"  - Verify the path in config or ENTITYSVC_SQLITE_PATH env var",
			absPath, parentDir)
	}

	return fmt.Sprintf("Failed to initialize SQLite database at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure the directory %s exists and is writable", absPath, err, parentDir)
}

// containsIgnoreCase checks if a string contains a substring (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	if len(s) < len(substr) {
		return false
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if equalFoldAt(s, substr, i) {
			return true
		}
	}
	return false
}

func equalFoldAt(s, substr string, start int) bool {
	for i := 0; i < len(substr); i++ {
		c1, c2 := s[start+i], substr[i]
		if c1 == c2 {
			continue
		}
		if 'A' <= c1 && c1 <= 'Z' {
			c1 += 'a' - 'A'
		}
		if 'A' <= c2 && c2 <= 'Z' {
			c2 += 'a' - 'A'
		}
		if c1 != c2 {
			return false
		}
	}
	return true
}
