// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package web

import (
	"html/template"
	"strconv"
	"strings"
)

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{"num": num}).Parse(`
{{define "head"}}<html>
<head>
<style>
.grid-container {
  display: grid;
  grid-template-columns: auto auto auto auto;
  grid-gap: 5px;
  padding: 5px;
  background-color: #2196F3;
  font-size: 20px;
}
html {
font-family: "Lucida sans", sans-serif;
}
.header {
background-color: #9933cc;
color: #ffffff;
padding: 15px;
}
table, tr {
border: 1px solid black;
}
tr {
text-align: center;
}
</style>
</head>
<body>
{{end}}

{{define "identity"}}<div class="header">
<h1>{{.Title}}</h1>
<h2>Product Model: {{.Info.Model}}<br>
Hardware Version: {{.Info.HardwareVersion}}<br>
Software Version: {{.Info.SoftwareVersion}}<br>
Serial number: {{.Info.SerialNumber}}</h2>
</div>
{{end}}

{{define "status"}}{{template "head"}}{{template "identity" .}}{{with .Info}}
<h2>Array Information</h2>
<div class="grid-container">
<div>Array Voltage: {{num .ArrayVolts}}V</div>
<div>Array Current: {{num .ArrayAmps}}A</div>
<div>Array Power: {{.ArrayWatts}}W</div>
<div>Array working state: {{.ArrayWorkingState}}</div>
<div>Power Generated Today: {{.PowerGeneratedToday}}W</div>
</div>
<h2>Battery Information</h2>
<div class="grid-container">
<div>Battery Voltage: {{num .BatteryVolts}}V</div>
<div>Battery charging amp: {{num .BatteryAmps}}A</div>
<div>Charging state: {{.ChargingState}}</div>
<div>State of Charge: {{.SOC}}%</div>
<div>Battery type: {{.BatteryType}}</div>
<div>Battery capacity: {{.BatteryCapacity}}AH</div>
<div>Battery temperature: {{.BatteryTemp}}C</div>
</div>
<h2>Load Information</h2>
<div class="grid-container">
<div>Load Voltage: {{num .LoadVolts}}V</div>
<div>Load Current: {{num .LoadAmps}}A</div>
<div>Load Power: {{.LoadWatts}}W</div>
</div>
<h2>Controller Information</h2>
<div class="grid-container">
<div>Device temperature: {{.DeviceTemp}}C</div>
<div>system voltage setting: {{.SystemVoltageSetting}}V</div>
<div>system voltage recognized: {{.SystemVoltageRecognised}}V</div>
<div>System Max Voltage supported: {{.MaxSystemVolts}}V</div>
<div>System Rated Charge Current: {{.RatedChargeAmps}}A</div>
</div>
<h2>Battery History today</h2>
<div class="grid-container">
<div>Total battery charge: {{.Today.ChargeAmpHours}}AH</div>
<div>Total battery discharge: {{.Today.DischargeAmpHours}}AH</div>
<div>Minimum battery voltage: {{num .Today.BatteryMinVolts}}V</div>
<div>Maximum battery voltage: {{num .Today.BatteryMaxVolts}}V</div>
<div>Maximum battery<br>charging power: {{num .Today.MaxChargeWatts}}W</div>
</div>
<h2>Historical data</h2>
<div class="grid-container">
<div>Total Operating Days: {{.TotalOperatingDays}}</div>
<div>Total times battery over discharged: {{.TotalOverDischarges}}</div>
<div>Total times battery fully charged: {{.TotalFullCharges}}</div>
<div>Total charge: {{.TotalChargeAmpHours}}AH</div>
<div>Cumulative power generated: {{.CumulativePowerGenerated}}KWH</div>
<div>Cumulative power consumed: {{.CumulativePowerConsumed}}KWH</div>
</div>{{end}}
</body>
</html>
{{end}}

{{define "history"}}{{template "head"}}{{template "identity" .}}<table>
<tr>
<th>Day</th>
<th>Min Battery Voltage(V)</th>
<th>Max Battery Voltage(V)</th>
<th>Max Charge Curr (A)</th>
<th>Max Discharge Curr (A)</th>
<th>Max Charge Power(W)</th>
<th>Max Discharge Power(W)</th>
<th>Charge(AH)</th>
<th>Discharge(AH)</th>
<th>Charge(KWH)</th>
<th>Discharge(KWH)</th>
</tr>
{{range .History}}<tr>
<td>{{.Day}}</td>
<td>{{num .BatteryMinVolts}}</td>
<td>{{num .BatteryMaxVolts}}</td>
<td>{{num .MaxChargeAmps}}</td>
<td>{{num .MaxDischargeAmps}}</td>
<td>{{num .MaxChargeWatts}}</td>
<td>{{num .MaxDischargeWatts}}</td>
<td>{{.ChargeAmpHours}}</td>
<td>{{.DischargeAmpHours}}</td>
<td>{{num .PowerGeneratedKWh}}</td>
<td>{{num .PowerConsumedKWh}}</td>
</tr>
{{end}}</table>
</body>
</html>
{{end}}

{{define "error"}}{{template "head"}}<div class="header">
<h1>{{.}}</h1>
</div>
</body>
</html>
{{end}}
`))

// num formats v with three decimals and drops the trailing zeros, and the
// point if nothing is left after it.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
