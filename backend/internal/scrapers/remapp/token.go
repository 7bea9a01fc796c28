package remapp

import (
	"bytes"
	"encoding/json"
)

// tokenKeys are the key names a login response may carry its token under.
var tokenKeys = map[string]struct{}{
	"token":        {},
	"access_token": {},
	"api_token":    {},
	"jwt":          {},
}

// ExtractToken walks a JSON document depth-first in document order and
// returns the first non-empty string stored under one of the known token
// keys. A value is searched before the keys that follow it.
func ExtractToken(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	token, found, err := findToken(dec, false)
	if err != nil {
		return "", false
	}
	return token, found
}

// findToken consumes one value from dec. underTokenKey is set when the value
// sits under one of tokenKeys.
func findToken(dec *json.Decoder, underTokenKey bool) (string, bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", false, err
	}

	switch v := tok.(type) {
	case string:
		if underTokenKey && v != "" {
			return v, true, nil
		}
		return "", false, nil
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return "", false, err
				}
				key, _ := keyTok.(string)
				_, isTokenKey := tokenKeys[key]
				if token, found, err := findToken(dec, isTokenKey); err != nil || found {
					return token, found, err
				}
			}
		case '[':
			for dec.More() {
				if token, found, err := findToken(dec, false); err != nil || found {
					return token, found, err
				}
			}
		}
		// closing delimiter
		_, err := dec.Token()
		return "", false, err
	}
	return "", false, nil
}
