// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors_test

import (
	goerrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrisio/hris/errors"
)

func TestError(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	e1 := errors.E(errors.NoEntry, "opening file", err)
	require.Contains(t, e1.Error(), "opening file")
	require.Contains(t, e1.Error(), "no such file or directory")

	e2 := errors.E(err)
	require.True(t, goerrors.Is(e2, os.ErrNotExist))
}

func TestErrorChaining(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	inner := errors.E("failed to open file", err)
	outer := errors.E(errors.BadInfoString, "cannot proceed", inner)
	require.Contains(t, outer.Error(), "cannot proceed")
	require.Contains(t, outer.Error(), errors.Separator)
	require.Contains(t, outer.Error(), "failed to open file")
}

func TestMessage(t *testing.T) {
	for _, c := range []struct {
		err     error
		message string
	}{
		{errors.E("hello"), "hello"},
		{errors.E("hello", "world"), "hello world"},
	} {
		require.Equal(t, c.message, c.err.Error())
	}
}

func TestKindOfSyscall(t *testing.T) {
	_, err := os.Open("/dev/notexist")
	require.Equal(t, errors.NoEntry, errors.KindOf(err))
}

func TestIs(t *testing.T) {
	e := errors.E(errors.TooManyUnget, "push overflow")
	require.True(t, goerrors.Is(e, errors.E(errors.TooManyUnget)))
	require.False(t, goerrors.Is(e, errors.E(errors.BadSeek)))
}

func TestRecover(t *testing.T) {
	plain := fmt.Errorf("plain failure")
	wrapped := errors.Recover(plain)
	require.Equal(t, errors.Other, wrapped.Kind)

	already := errors.E(errors.BadMode, "x").(*errors.Error)
	require.Same(t, already, errors.Recover(already))
}
