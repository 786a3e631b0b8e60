// Package models defines the core domain models for the smart-scale kiosk.
//
// # Models
//
//   - Reading: one raw sample from the scale bridge (weight, label, price, timestamp)
//   - Product: a catalog entry or a product synthesized from a detected label
//   - CartItem / Totals / Receipt: the in-memory cart and its derived sums
//   - Session: the durable mirror of one detection-to-checkout cycle
//   - Clerk: an operator account for kiosk login
//
// # Design Principles
//
//  1. **Cart is authoritative**: Session is a best-effort durable mirror; it may
//     fall behind the in-memory cart and is never consulted to rebuild it.
//  2. **Totals are folded**: no running totals are stored anywhere a fold over
//     the item sequence could drift from.
//  3. **Milliseconds everywhere**: all timestamps are Unix milliseconds once
//     they cross into this package; normalization from seconds happens at the
//     feed boundary.
//  4. **Confidence is opaque**: the detector's confidence score is carried for
//     display only, never thresholded.
package models
