package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func expectBodyContains(res *http.Response, want string) error {
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	if !strings.Contains(string(body), want) {
		return fmt.Errorf("body does not contain %q", want)
	}
	return nil
}

func parseQuery(t *testing.T, query string) map[string]string {
	t.Helper()
	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	params := map[string]string{}
	for k := range values {
		params[k] = values.Get(k)
	}
	return params
}
