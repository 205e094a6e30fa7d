// Append-only log of moderation action records, with per-rule statistics computed on read.
//
// Every rule match produces exactly one Record, regardless of how many actions the rule has or whether they succeeded. Records are never mutated. The log doubles as the trigger history used for rule cooldowns and hourly trigger ceilings.
package audit
