// Package testutil provides testing utilities for linerelay.
package testutil

// Obviously fake credentials so secret scanners never flag test fixtures.
const (
	// FakeLineChannelSecret is a test LINE channel secret used to sign webhook bodies.
	FakeLineChannelSecret = "test-line-channel-secret"

	// FakeLineAccessToken is a test LINE channel access token.
	FakeLineAccessToken = "test-line-access-token"

	// FakeXAIKey is a test API key for the generation endpoint.
	FakeXAIKey = "test-xai-api-key"

	// FakeReplyToken is a test single-use reply token.
	FakeReplyToken = "test-reply-token"

	// FakeUserID is a test LINE user ID.
	FakeUserID = "Utest0000000000000000000000000000"
)
