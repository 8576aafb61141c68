/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Service/keys for OS keyring.
const (
	keyringService  = "Yarnweave"
	keyringPassword = "library_password"
)

// LibraryPassword returns the shared library password from the OS keyring.
// A missing entry is not an error.
func LibraryPassword() (string, error) {
	pw, err := keyring.Get(keyringService, keyringPassword)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return pw, err
}

// SetLibraryPassword stores the shared library password in the OS keyring.
func SetLibraryPassword(pw string) error {
	return keyring.Set(keyringService, keyringPassword, pw)
}

// DeleteLibraryPassword removes the stored password. Deleting a missing entry succeeds.
func DeleteLibraryPassword() error {
	if err := keyring.Delete(keyringService, keyringPassword); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
