package apiclient

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // MD5 is one of the hash choices the server accepts
	"crypto/sha1" //nolint:gosec // SHA1 is one of the hash choices the server accepts
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrMalformedRequest indicates a request URI the signer cannot canonicalize:
// either the path is not rooted at "/" or the query string contains more than
// one "?" separator.
var ErrMalformedRequest = errors.New("malformed request")

const (
	// authScheme is the fixed tag that opens every Authorization header value.
	authScheme = "VCIDER"

	// emptyQueryMarker stands in for an absent query string inside the signed
	// message. It is never sent on the wire; it only makes the absence of a
	// query string unambiguous in the canonical message.
	emptyQueryMarker = "-"
)

// Algorithm selects the keyed-hash function used for request signatures.
// The chosen name travels inside the Authorization header so the server knows
// how to verify the signature.
type Algorithm string

// Hash algorithms the server accepts.
const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
	MD5    Algorithm = "MD5"
)

func (a Algorithm) hashFunc() (func() hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	case MD5:
		return md5.New, nil
	default:
		return nil, errors.Newf("unsupported hash algorithm %q", string(a))
	}
}

// Credentials identify the calling application to the API.
// They are immutable for the lifetime of a client.
type Credentials struct {
	// AppID identifies the application to connect to. Currently always "0".
	AppID string

	// APIID is the public part of the API credentials, similar to a username.
	APIID string

	// APIKey is the secret part of the API credentials. Keep it secret.
	APIKey string
}

// AuthHeader builds the Authorization header value for a single request.
//
// The signature is computed over a canonical message assembled from the HTTP
// method, the trailing-slash-normalized path, the lexicographically sorted
// query string (or a placeholder when absent), the offset-adjusted timestamp,
// both credential identifiers, and the request body. Identical inputs always
// produce an identical header.
func AuthHeader(method, uri string, body []byte, alg Algorithm, now time.Time, offsetSeconds int64, creds Credentials) (string, error) {
	newHash, err := alg.hashFunc()
	if err != nil {
		return "", err
	}

	path, query, err := canonicalize(uri)
	if err != nil {
		return "", err
	}

	timestamp := now.Unix() - offsetSeconds

	msg := fmt.Sprintf("%s:%s:%s:%d:%s:%s:%s",
		method, path, query, timestamp, creds.AppID, creds.APIID, string(body))

	mac := hmac.New(newHash, []byte(creds.APIKey))
	mac.Write([]byte(msg))
	sig := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("%s %s:%s:%d:%s:%s",
		authScheme, creds.AppID, creds.APIID, timestamp, string(alg), sig), nil
}

// canonicalize splits a request URI into the normalized path and canonical
// query string that enter the signed message.
func canonicalize(uri string) (path, query string, err error) {
	elems := strings.Split(uri, "?")
	switch len(elems) {
	case 1:
		path, query = elems[0], emptyQueryMarker
	case 2:
		path = elems[0]
		// Sort the parameter pairs so the signature is independent of the
		// order the caller happened to assemble them in.
		pairs := strings.Split(elems[1], "&")
		sort.Strings(pairs)
		query = strings.Join(pairs, "&")
	default:
		return "", "", errors.Wrapf(ErrMalformedRequest,
			"query string has %d '?' separators", len(elems)-1)
	}

	if !strings.HasPrefix(path, "/") {
		return "", "", errors.Wrapf(ErrMalformedRequest, "request path %q is not rooted", path)
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return path, query, nil
}
