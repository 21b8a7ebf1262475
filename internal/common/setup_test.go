/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitializeLoggerReplacesGlobal(t *testing.T) {
	previous := zap.L()
	logger, cleanup := InitializeLogger()
	defer func() {
		cleanup()
		zap.ReplaceGlobals(previous)
	}()

	if zap.L() != logger {
		t.Fatal("Expected InitializeLogger to install the global logger")
	}
	if !zap.L().Core().Enabled(zap.InfoLevel) {
		t.Error("Expected the global logger to record info messages")
	}
}
