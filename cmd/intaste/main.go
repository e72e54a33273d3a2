// Copyright (C) 2026 CodeLibs Project (dev@codelibs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command intaste is a terminal client for the Intaste assist API.
//
// It streams conversational answers over Fess search results, renders
// citations with sanitized snippets, and can rate completed turns.
//
// # Configuration
//
// Resolution order: flags, then environment, then ~/.intaste/config.yaml.
//
//   - ASSIST_API_URL / base_url: API root
//   - ASSIST_API_TOKEN / token: bearer token
//   - INTASTE_LANGUAGE / language: display language (default "en")
//
// # Usage
//
//	intaste query "how do I configure crawlers?"
//	intaste query --interactive
//	intaste feedback --session <uuid> --turn 1 --rating up
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
