/*
Package github wraps the two remote code-forge protocols the pipeline uses:
the GraphQL endpoint (v4) for search and the REST endpoint (v3) for
mutations.

Both clients follow one behavioral contract. Before every call the current
rate-limit snapshot is checked: with fewer than five requests remaining and
the reset window still ahead, the call sleeps until the reset. After every
call the response's rate-limit metadata updates the snapshot — header fields
for v3, a rateLimit query section for v4. Server-side rate-limit rejections
(403 with an "API rate limit exceeded" message) surface as RateLimitError
with a computed retry delay; the v4 Request wrapper retries them
transparently, the v3 client leaves retrying to the caller.
*/
package github
