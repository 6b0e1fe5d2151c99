// Package presigned signs derivative requests with a truncated HMAC-SHA256.
//
// A signature covers the asset id and the resolved width, height, format,
// quality, preset name and owner. Because the signed values are the resolved
// ones, a URL stays valid only while the preset it names resolves to the same
// options.
//
// Usage:
//
//	signer := presigned.New(presigned.WithSecretKey(secret), presigned.WithURLPrefix("/v1"))
//	u, err := signer.SignURL(presigned.Params{AssetID: id, Format: "webp", Quality: 80}, nil)
package presigned
