package browser

import (
	"context"
	"net/http"
	"testing"
	"time"

	// Packages
	assert "github.com/stretchr/testify/assert"
)

func Test_waitForCallback_success(t *testing.T) {
	assert := assert.New(t)

	listener, redirectURI, err := NewCallbackListener("127.0.0.1:0", "/callback")
	assert.NoError(err)

	resultCh := make(chan *authResult, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := waitForCallback(context.Background(), listener, "expected-state", Config{Path: "/callback"})
		resultCh <- r
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get(redirectURI + "?code=the-code&state=expected-state")
	assert.NoError(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	select {
	case r := <-resultCh:
		assert.NoError(<-errCh)
		assert.Equal("the-code", r.code)
		assert.Equal("expected-state", r.state)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback result")
	}
}

func Test_waitForCallback_state_mismatch(t *testing.T) {
	assert := assert.New(t)

	listener, redirectURI, err := NewCallbackListener("127.0.0.1:0", "/callback")
	assert.NoError(err)

	resultCh := make(chan error, 1)
	go func() {
		_, err := waitForCallback(context.Background(), listener, "expected-state", Config{Path: "/callback"})
		resultCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get(redirectURI + "?code=the-code&state=wrong-state")
	assert.NoError(err)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	select {
	case err := <-resultCh:
		assert.Error(err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback result")
	}
}

func Test_waitForCallback_server_error(t *testing.T) {
	assert := assert.New(t)

	listener, redirectURI, err := NewCallbackListener("127.0.0.1:0", "/callback")
	assert.NoError(err)

	resultCh := make(chan error, 1)
	go func() {
		_, err := waitForCallback(context.Background(), listener, "expected-state", Config{Path: "/callback"})
		resultCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get(redirectURI + "?error=access_denied&error_description=user+said+no")
	assert.NoError(err)
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	select {
	case err := <-resultCh:
		assert.Error(err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback result")
	}
}

func Test_waitForCallback_timeout(t *testing.T) {
	assert := assert.New(t)

	listener, _, err := NewCallbackListener("127.0.0.1:0", "/callback")
	assert.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = waitForCallback(ctx, listener, "expected-state", Config{Path: "/callback"})
	assert.Error(err)
}
