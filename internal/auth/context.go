package auth

import "context"

type subjectKey struct{}

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)
	return subject, ok && subject != ""
}

// ContextIdentity resolves the caller from the subject the HTTP layer stored in the context.
type ContextIdentity struct{}

func (ContextIdentity) Subject(ctx context.Context) (string, bool) {
	return SubjectFromContext(ctx)
}
