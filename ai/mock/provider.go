// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import "github.com/poiesic/memctx/ai"

// MockProvider is a test double for ai.Provider.
type MockProvider struct {
	summarizer *MockSummarizer
}

// NewMockProvider creates a new mock provider with a default mock summarizer.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use GetMockSummarizer() to access the concrete type for test assertions.
func NewMockProvider() ai.Provider {
	return &MockProvider{summarizer: NewMockSummarizer()}
}

// NewMockProviderWithSummarizer creates a mock provider around a custom summarizer.
func NewMockProviderWithSummarizer(summarizer *MockSummarizer) ai.Provider {
	return &MockProvider{summarizer: summarizer}
}

// Summarizer returns the mock summarizer.
func (p *MockProvider) Summarizer() ai.Summarizer {
	return p.summarizer
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockSummarizer returns the underlying mock summarizer for test assertions.
func (p *MockProvider) GetMockSummarizer() *MockSummarizer {
	return p.summarizer
}
