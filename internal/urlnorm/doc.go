// Package urlnorm canonicalizes YouTube video URLs.
//
// Every accepted surface form (watch pages, shorts, embeds, live pages and
// youtu.be short links) maps to a single [ID] of the form
// https://www.youtube.com/watch?v=<id>, which is used as the metadata cache
// key and handed to metadata providers. Normalization is pure: it performs
// no network or filesystem access.
package urlnorm
