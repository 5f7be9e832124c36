package file

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileOperations defines methods for reading from and writing to files.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	ReadFileRaw(filePath string) ([]byte, error)
	ReadJsonFile(filePath string, v any) error
	ReadYamlFile(filePath string, v any) error
	WriteJsonFile(filePath string, data any) error
	WriteAtomic(filePath string, write func(w io.Writer) error) error
	EnsureDir(dir string) error
	GetFileHash(filePath string) (string, error)
}

// FileService implements the FileOperations interface using standard file operations.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists checks if the file exists and returns boolean and error
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}

	// checking err == nil because of permission related error
	return err == nil, err
}

// ReadFileRaw reads the contents of the file at filePath and returns it as a byte array.
func (fs *FileService) ReadFileRaw(filePath string) ([]byte, error) {
	return os.ReadFile(filePath)
}

// ReadJsonFile reads and unmarshals JSON data from the given file.
func (fs *FileService) ReadJsonFile(filePath string, v any) error {
	return decodeFile(filePath, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(v)
	})
}

// ReadYamlFile reads and unmarshals YAML data from the given file.
// Fields absent from the file keep the values already in v.
func (fs *FileService) ReadYamlFile(filePath string, v any) error {
	return decodeFile(filePath, func(r io.Reader) error {
		err := yaml.NewDecoder(r).Decode(v)
		if err == io.EOF {
			return nil // empty document
		}
		return err
	})
}

// WriteJsonFile writes data as indented JSON, replacing filePath atomically.
func (fs *FileService) WriteJsonFile(filePath string, data any) error {
	return fs.WriteAtomic(filePath, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	})
}

// WriteAtomic streams write into a temporary file next to filePath and renames it
// into place, so readers never observe a partial file.
func (fs *FileService) WriteAtomic(filePath string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	tempFile := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tempFile) // Clean up partial file
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

// EnsureDir creates dir and any missing parents.
func (fs *FileService) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// GetFileHash returns the hex SHA256 digest of the file at filePath.
func (fs *FileService) GetFileHash(filePath string) (string, error) {
	var sum []byte
	err := decodeFile(filePath, func(r io.Reader) error {
		hasher := sha256.New()
		if _, err := io.Copy(hasher, r); err != nil {
			return fmt.Errorf("error reading file contents: %w", err)
		}
		sum = hasher.Sum(nil)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func decodeFile(filePath string, decode func(r io.Reader) error) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return decode(file)
}
