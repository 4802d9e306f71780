package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// NewSessionID returns a random conversation id.
func NewSessionID() string {
	return uuid.NewString()
}

// IsValidSessionID reports whether id looks like an id produced by NewSessionID.
func IsValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// LoadDotenv loads path into the environment without overriding variables already set.
// A missing file is not an error; loaded reports whether the file was found.
func LoadDotenv(path string) (loaded bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("error loading %s: %w", path, err)
	}
	return true, nil
}
