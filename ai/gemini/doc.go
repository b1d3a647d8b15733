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

// Package gemini implements the AI gateways on Google's generative models,
// either through the Gemini API (API key) or Vertex AI (project and location
// with Application Default Credentials).
//
//	provider, err := gemini.NewProvider(ctx, gemini.Config{
//	    Backend:  gemini.BackendVertex,
//	    Project:  "my-project",
//	    Location: "us-central1",
//	})
package gemini
