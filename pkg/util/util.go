package util

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// LoadConfig reads a YAML file, unmarshals it into a struct of type T and
// checks any `validate` struct tags.
func LoadConfig[T any](filepath string) (*T, error) {
	// 1. Read the file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// 2. Initialize an empty instance of T
	var config T

	// 3. Unmarshal the YAML data into the struct
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	// 4. Validate tagged fields
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// SendJSON marshals data and writes it as a text message on the WebSocket
// connection.
func SendJSON(conn *websocket.Conn, data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	return nil
}

// LogWithLabel logs a formatted message prefixed with an identifying label,
// typically a session or request ID.
func LogWithLabel(label string, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{label}, args...)...)
}
