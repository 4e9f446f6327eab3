// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package genericexec provides a common interface to execute the external
// test runner so that callers can substitute it in tests.
package genericexec
