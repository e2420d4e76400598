package scraper

import "errors"

// ErrMissingURL is returned when a response carries neither a final URL nor
// a request URL.
var ErrMissingURL = errors.New("response has no URL")
