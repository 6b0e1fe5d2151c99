// Package simplemedia provides a reusable library for serving signed,
// on-demand derivatives of uploaded media with pluggable blob storage,
// converters and an image transform engine.
//
// It exposes a single Service interface that accepts uploads, lists the
// stored tree and answers derivative requests. A derivative request is
// resolved against presets, verified with an HMAC signature, then served from
// the derivative cache or produced by fetching the origin, converting it to an
// image with the converter registered for its media class, transforming it and
// storing the result under a deterministic cache key.
//
// Storage Layout
//
// Public originals live under "originals/", private originals under
// "users/<owner>/" and derivatives under "cache/<asset id>/". Public asset ids
// are relative to "originals/"; private asset ids are the full key.
package simplemedia
