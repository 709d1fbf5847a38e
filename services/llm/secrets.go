// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// secretsDir is where container runtimes mount secrets.
var secretsDir = "/run/secrets"

// resolveAPIKey returns the first non-empty of: the explicit value, the
// environment variables in order, and the secret file secretsDir/secretName.
func resolveAPIKey(explicit, secretName string, envVars ...string) (string, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, nil
	}
	for _, env := range envVars {
		if k := strings.TrimSpace(os.Getenv(env)); k != "" {
			return k, nil
		}
	}
	path := secretsDir + "/" + secretName
	if content, err := os.ReadFile(path); err == nil {
		if k := strings.TrimSpace(string(content)); k != "" {
			slog.Info("Read API key from secrets", "path", path)
			return k, nil
		}
	}
	return "", fmt.Errorf("%s environment variable not set and secret %s not found", envVars[0], path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
