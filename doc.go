/*
Package idbmigrate extracts records from a Chromium IndexedDB backing store
(a LevelDB database with a proprietary key and value encoding) and replays
them into an embedded document store backed by Bolt, so that a dictionary
database persisted by a browser extension can be consumed outside the
browser.

The migration is a one-shot batch: scan everything, decode what can be
decoded, group by logical store, write each store in its own transaction.
Records that cannot be decoded or that belong to stores we do not know about
are counted and skipped, never fatal. Only two conditions abort a run: the
source database exists but cannot be opened, and the target database cannot
be created.

# Source key encoding

Record keys carry a composite prefix of three little-endian base-128 varints:
database id, object store id, index id. Each byte contributes its low 7 bits;
the high bit is the continuation flag. The bytes after the prefix are the
user key. Chromium does not length-prefix the user key, and we do not
implement its full key type system; instead the remainder is classified by a
priority heuristic:

 1. Non-empty, first byte nonzero, valid UTF-8: text. A leading zero byte is
    reserved by the source format and signals a non-text encoding.
 2. At most 8 bytes: big-endian IEEE-754 double.
 3. Anything else: raw bytes.

The heuristic can misclassify; downstream code keys the target store on the
best-effort decode and falls back to auto-assigned keys when the user key is
unusable.

# Source value encoding

Values are V8 structured-clone envelopes. We do not decode the envelope.
When the payload is JSON-shaped text (directly, or as a balanced {...} / [...]
substring inside the envelope), the JSON is recovered; otherwise the raw
bytes are kept opaque.

# Target value encoding

**Value header**: flags (uvarint).

**Value data**: when the structured flag is set, msgpack of the recovered
value; otherwise the opaque source bytes unchanged.

Keys are the decoded user key bytes; text keys as UTF-8, number keys as the
big-endian bits of the double so they sort correctly, byte keys as-is.
Keyless records get an 8-byte big-endian sequence number.
*/
package idbmigrate
