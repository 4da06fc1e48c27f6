/*
Package guardrails validates what users send to agents and sanitizes what
agents send back.

The building blocks are Validators composed in a ValidatorChain (fail-fast,
collect-all or parallel) and Filters that rewrite content:

  - LengthValidator, RateLimitValidator, KeywordValidator, PatternValidator
  - PIIDetector and Sanitizer for emails, phone numbers and card numbers
  - OutputValidator for checking and filtering agent replies

GuardRails combines them for the order support swarm:

	g := guardrails.MustNew(guardrails.DefaultConfig())
	if ok, msg := g.ValidateInput(ctx, query, userID); !ok {
	    return msg
	}
	reply = g.SanitizeOutput(reply)

Rejected keyword and pattern queries are kept for SecurityReport.
*/
package guardrails
