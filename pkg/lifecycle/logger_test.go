/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/prakash-gist/mod-ping/pkg/logger"
)

func TestInitializeLogger(t *testing.T) {
	if err := InitializeLogger(nil); err != nil {
		t.Fatalf("Failed to initialize with default config: %v", err)
	}

	config := &logger.Config{
		Level:  "warn",
		Output: "stderr",
	}

	if err := InitializeLogger(config); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if logger.GetLogger().GetLevel() != zerolog.WarnLevel {
		t.Errorf("Expected warn level, got %v", logger.GetLogger().GetLevel())
	}
}

func TestInitializeLoggerRejectsUnknownLevel(t *testing.T) {
	config := &logger.Config{
		Level:  "loud",
		Output: "stdout",
	}

	if err := InitializeLogger(config); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("pingerd", &logger.Config{
		Level:  "debug",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create component logger: %v", err)
	}

	if log == nil {
		t.Fatal("Component logger should not be nil")
	}

	log.Debug().Msg("component logger works")

	log.SetDebug(false)
	log.SetLevel(zerolog.ErrorLevel)
}

func TestNewLoggerImplRejectsUnknownLevel(t *testing.T) {
	_, err := NewLoggerImpl(&logger.Config{Level: "shouty"})
	if err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
