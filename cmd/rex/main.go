/*
Copyright © 2024 the rex authors.
This file is part of rex.

rex is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

rex is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with rex.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command rex prepares renewable resource data for the System Advisor Model.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/rex/rexutil"
)

func main() {
	if err := rexutil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
