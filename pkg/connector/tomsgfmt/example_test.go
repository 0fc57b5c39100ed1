// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tomsgfmt_test

import (
	"fmt"

	"github.com/aiku/mautrix-tomsg/pkg/connector/matrixto"
	"github.com/aiku/mautrix-tomsg/pkg/connector/tomsgfmt"
)

func ExampleMentionTable_Convert() {
	table := tomsgfmt.NewMentionTable(map[string]matrixto.Reference{
		"tom": matrixto.User("@tomsg_tom:lieuwe.xyz"),
	})

	fmt.Println(table.Convert("hello tom"))
	// Output: hello <a href="https://matrix.to/#/@tomsg_tom:lieuwe.xyz">tom</a>
}
