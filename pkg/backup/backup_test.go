package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStorage_SaveLoadListDelete(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	if err := storage.Save(context.Background(), "backup-b.json", strings.NewReader("second")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := storage.Save(context.Background(), "backup-a.json", strings.NewReader("first")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := storage.Save(context.Background(), "other.json", strings.NewReader("x")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	names, err := storage.List(context.Background(), "backup-")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(names) != 2 || names[0] != "backup-a.json" || names[1] != "backup-b.json" {
		t.Errorf("expected sorted backup names, got %v", names)
	}

	reader, err := storage.Load(context.Background(), "backup-a.json")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	content, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(content) != "first" {
		t.Errorf("expected %q, got %q", "first", content)
	}

	if err := storage.Delete(context.Background(), "backup-a.json"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := storage.Load(context.Background(), "backup-a.json"); err == nil {
		t.Error("expected load of deleted snapshot to fail")
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("staging file left behind: %s", e.Name())
		}
	}
}

func TestBackupService_CreateBackup(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	service := NewBackupService(storage, "1.0.0")

	data := &BackupData{
		Streams: map[string]interface{}{
			"str_1": map[string]interface{}{
				"id":    "str_1",
				"title": "Test Stream",
			},
		},
		Stats: map[string]interface{}{
			"str_1": map[string]interface{}{"viewers": 3},
		},
	}

	backupName, err := service.CreateBackup(context.Background(), data)
	if err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}

	if backupName == "" {
		t.Error("expected non-empty backup name")
	}

	filePath := filepath.Join(tmpDir, backupName)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Errorf("backup file does not exist: %s", filePath)
	}
}

func TestBackupService_RestoreBackup(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	service := NewBackupService(storage, "1.0.0")

	data := &BackupData{
		Streams: map[string]interface{}{
			"str_1": map[string]interface{}{"id": "str_1", "title": "Test Stream"},
		},
	}

	name, err := service.CreateBackup(context.Background(), data)
	if err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}

	restored, err := service.RestoreBackup(context.Background(), name)
	if err != nil {
		t.Fatalf("failed to restore backup: %v", err)
	}

	if restored.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", restored.Version)
	}
	if len(restored.Streams) != 1 {
		t.Errorf("expected 1 stream, got %d", len(restored.Streams))
	}
}

func TestBackupService_ListAndDelete(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	service := NewBackupService(storage, "1.0.0")

	name, err := service.CreateBackup(context.Background(), &BackupData{})
	if err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}

	names, err := service.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if len(names) != 1 || names[0] != name {
		t.Errorf("expected [%s], got %v", name, names)
	}

	latest, err := service.LatestBackup(context.Background())
	if err != nil {
		t.Fatalf("failed to find latest backup: %v", err)
	}
	if latest != name {
		t.Errorf("expected latest %s, got %s", name, latest)
	}

	if err := service.DeleteBackup(context.Background(), name); err != nil {
		t.Fatalf("failed to delete backup: %v", err)
	}

	names, err = service.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no backups, got %v", names)
	}
}
