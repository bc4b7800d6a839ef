// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv,
// MustUnsetenv), file fixtures (MustMkdirAll, MustWriteFile, MustClose),
// archive builders (WriteZip, WriteTarGz, WriteTarXz, WriteTarZst) and a
// scripted command runner (FakeRunner) standing in for the host.
package testutil
