package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNoQuote  = errors.New("no quote available")
	ErrNoRoute  = errors.New("no viable route")
)
