/*
Copyright © 2018 the sstdiag authors.
This file is part of sstdiag.

sstdiag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sstdiag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sstdiag.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command sstdiag compares the sea surface temperature of climate models
// with observations.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/sstdiag/sstdiagutil"
)

func main() {
	if err := sstdiagutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
