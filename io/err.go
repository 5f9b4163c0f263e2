package io

import (
	"errors"

	"github.com/ezrec/toyvm/translate"
)

var f = translate.From

var (
	// Console errors
	ErrNoOutput = errors.New(f("no output"))
)
