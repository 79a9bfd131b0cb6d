// Package assistant answers conversational drug questions.
//
// A turn is normalized, the mentioned drug (if any) is remembered for the
// session, pronouns are resolved against it, and the router picks one of
// four paths:
//
//   - drug specific: dense retrieval filtered to the drug, then the QA prompt
//   - explanation: the term alone goes to the explanation prompt
//   - fuzzy: hybrid retrieval, then the QA prompt
//   - symptom: TF-IDF symptom matching, no language model
//
// When retrieval returns nothing the language model is not called and the
// fixed "not available" reply is returned instead.
package assistant
