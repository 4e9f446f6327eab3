// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fakeexec lets unit tests run the test binary itself as a fake
// external command, such as the uploader's test runner.
package fakeexec

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
)

const (
	// auxMainNameEnv names the auxiliary main function to run.
	auxMainNameEnv = "UPLOADERPERF_AUX_MAIN"

	// auxMainValueEnv carries the JSON-encoded parameter of the auxiliary
	// main function.
	auxMainValueEnv = "UPLOADERPERF_AUX_VALUE"
)

// AuxMain is a registered auxiliary main function.
type AuxMain struct {
	name string
}

// Params returns the information needed to run the auxiliary main function
// with v, an arbitrary JSON-serializable value, as its parameter.
func (a *AuxMain) Params(v interface{}) (*AuxMainParams, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	p, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &AuxMainParams{
		executable: exe,
		name:       a.name,
		param:      string(p),
	}, nil
}

// AuxMainParams holds what is needed to run an auxiliary main function.
type AuxMainParams struct {
	executable string
	name       string
	param      string
}

// Executable returns the path of the current executable.
func (a *AuxMainParams) Executable() string {
	return a.executable
}

// Envs returns the "key=value" environment variables selecting the auxiliary
// main function, suitable for appending to os/exec.Cmd.Env.
func (a *AuxMainParams) Envs() []string {
	return []string{
		fmt.Sprintf("%s=%s", auxMainNameEnv, a.name),
		fmt.Sprintf("%s=%s", auxMainValueEnv, a.param),
	}
}

// SetEnvs sets the environment variables of the current process so that
// subprocesses running the current executable call the auxiliary main
// function. Commands that inherit the environment, such as
// genericexec.ExecCmd, need this instead of Envs.
//
// It returns a closure restoring the environment. It panics if another
// auxiliary main is already selected.
func (a *AuxMainParams) SetEnvs() (restore func()) {
	if val := os.Getenv(auxMainNameEnv); val != "" {
		panic(fmt.Sprintf("fakeexec.AuxMainParams.SetEnvs: %s already set to %q", auxMainNameEnv, val))
	}
	os.Setenv(auxMainNameEnv, a.name)
	os.Setenv(auxMainValueEnv, a.param)
	return func() {
		os.Unsetenv(auxMainNameEnv)
		os.Unsetenv(auxMainValueEnv)
	}
}

var knownNames = map[string]struct{}{}

// NewAuxMain registers an auxiliary main function.
//
// name must be unique within the executable. f must have the signature
// func(args []string, param T) int, where T is JSON-serializable; args are
// the command line arguments following the executable and the returned value
// is the exit code.
//
// NewAuxMain must be called in a top-level variable initialization:
//
//	var runnerMain = fakeexec.NewAuxMain("runner", func(args []string, p runnerParams) int {
//		...
//	})
//
// If the current process was started for the auxiliary main, NewAuxMain calls
// f and exits with its result instead of returning.
func NewAuxMain(name string, f interface{}) *AuxMain {
	if _, found := knownNames[name]; found {
		panic(fmt.Sprintf("fakeexec.NewAuxMain: multiple registrations for %q", name))
	}
	knownNames[name] = struct{}{}

	tf := reflect.TypeOf(f)
	if tf.Kind() != reflect.Func || tf.NumIn() != 2 || tf.NumOut() != 1 ||
		tf.In(0) != reflect.TypeOf([]string(nil)) || tf.Out(0).Kind() != reflect.Int {
		panic("fakeexec.NewAuxMain: f has wrong signature: must be func([]string, T) int")
	}
	tp := tf.In(1)

	if os.Getenv(auxMainNameEnv) != name {
		return &AuxMain{name: name}
	}

	vp := reflect.New(tp)
	if err := json.Unmarshal([]byte(os.Getenv(auxMainValueEnv)), vp.Interface()); err != nil {
		panic(fmt.Sprintf("fakeexec.AuxMain: %s: failed to unmarshal parameter: %v", name, err))
	}
	out := reflect.ValueOf(f).Call([]reflect.Value{reflect.ValueOf(os.Args[1:]), vp.Elem()})
	os.Exit(int(out[0].Int()))
	panic("unreachable")
}
