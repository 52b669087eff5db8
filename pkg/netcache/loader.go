package netcache

import (
	"context"
	"strings"

	"github.com/slplayer/sltemplate/pkg/sltmpl"
)

// URLLoader loads templates over HTTP through a Cache.
type URLLoader struct {
	Cache *Cache
	// Base is prepended to names that are not absolute URLs.
	Base string
}

func (l URLLoader) Load(name string) (string, error) {
	url := name
	if !IsURL(name) {
		url = strings.TrimSuffix(l.Base, "/") + "/" + strings.TrimPrefix(name, "/")
	}
	b, err := l.Cache.ReadAll(context.Background(), url)
	if IsNotFound(err) {
		return "", sltmpl.ErrTemplateNotFound{Name: name}
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
