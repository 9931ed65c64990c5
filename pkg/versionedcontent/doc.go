// Package versionedcontent is a multi-language, multi-version content
// storage engine. It maps content items with language-dependent fields
// across historical versions onto relational rows, enforces the
// draft/publish/archive state machine under concurrent writers, and
// propagates content-type schema changes to already-stored content.
//
// The package is designed as an embeddable library: persistence is behind
// the Gateway interface (in-memory and PostgreSQL implementations under
// repo/), large or structurally distinct field payloads are routed to
// pluggable FieldStorage backends (under storage/), and content-type
// schema evolution lives in the schema subpackage.
package versionedcontent
