// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tokens

var keywords = map[string]Kind{
	"true":        KeywordTrue,
	"false":       KeywordFalse,
	"null":        KeywordNull,
	"in":          KeywordIn,
	"not_in":      KeywordNotIn,
	"contains":    KeywordContains,
	"starts_with": KeywordStartsWith,
	"ends_with":   KeywordEndsWith,
	"regex":       KeywordRegex,
}

// IsKeyword reports whether ident names one of the reserved words of the
// expression grammar, returning its token kind.
func IsKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}
