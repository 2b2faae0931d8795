package phonelength

// table maps an international dial code to the permitted length of the local number
// (digits after the dial code).
var table = map[string]Rule{
	"1":   {Min: 10, Max: 10, Country: "United States/Canada"},
	"31":  {Min: 9, Max: 9, Country: "Netherlands"},
	"32":  {Min: 9, Max: 9, Country: "Belgium"},
	"33":  {Min: 9, Max: 9, Country: "France"},
	"34":  {Min: 9, Max: 9, Country: "Spain"},
	"39":  {Min: 9, Max: 10, Country: "Italy"},
	"44":  {Min: 10, Max: 10, Country: "United Kingdom"},
	"49":  {Min: 10, Max: 11, Country: "Germany"},
	"7":   {Min: 10, Max: 10, Country: "Russia/Kazakhstan"},
	"81":  {Min: 10, Max: 10, Country: "Japan"},
	"82":  {Min: 9, Max: 10, Country: "South Korea"},
	"86":  {Min: 11, Max: 11, Country: "China"},
	"91":  {Min: 10, Max: 10, Country: "India"},
	"212": {Min: 9, Max: 9, Country: "Morocco"},
	"213": {Min: 9, Max: 9, Country: "Algeria"},
	"216": {Min: 8, Max: 8, Country: "Tunisia"},
	"218": {Min: 9, Max: 9, Country: "Libya"},
	"220": {Min: 7, Max: 7, Country: "Gambia"},
	"221": {Min: 9, Max: 9, Country: "Senegal"},
	"222": {Min: 8, Max: 8, Country: "Mauritania"},
	"223": {Min: 8, Max: 8, Country: "Mali"},
	"224": {Min: 9, Max: 9, Country: "Guinea"},
	"225": {Min: 10, Max: 10, Country: "Ivory Coast"},
	"226": {Min: 8, Max: 8, Country: "Burkina Faso"},
	"227": {Min: 8, Max: 8, Country: "Niger"},
	"228": {Min: 8, Max: 8, Country: "Togo"},
	"229": {Min: 8, Max: 8, Country: "Benin"},
	"230": {Min: 7, Max: 7, Country: "Mauritius"},
	"231": {Min: 8, Max: 8, Country: "Liberia"},
	"232": {Min: 8, Max: 8, Country: "Sierra Leone"},
	"233": {Min: 9, Max: 9, Country: "Ghana"},
	"234": {Min: 10, Max: 10, Country: "Nigeria"},
	"235": {Min: 8, Max: 8, Country: "Chad"},
	"236": {Min: 8, Max: 8, Country: "Central African Republic"},
	"237": {Min: 9, Max: 9, Country: "Cameroon"},
	"238": {Min: 7, Max: 7, Country: "Cape Verde"},
	"239": {Min: 7, Max: 7, Country: "Sao Tome and Principe"},
	"240": {Min: 9, Max: 9, Country: "Equatorial Guinea"},
	"241": {Min: 8, Max: 8, Country: "Gabon"},
	"242": {Min: 9, Max: 9, Country: "Republic of the Congo"},
	"243": {Min: 9, Max: 9, Country: "Democratic Republic of the Congo"},
	"244": {Min: 9, Max: 9, Country: "Angola"},
	"245": {Min: 7, Max: 7, Country: "Guinea-Bissau"},
	"246": {Min: 7, Max: 7, Country: "British Indian Ocean Territory"},
	"248": {Min: 7, Max: 7, Country: "Seychelles"},
	"249": {Min: 9, Max: 9, Country: "Sudan"},
	"250": {Min: 9, Max: 9, Country: "Rwanda"},
	"251": {Min: 9, Max: 9, Country: "Ethiopia"},
	"252": {Min: 8, Max: 8, Country: "Somalia"},
	"253": {Min: 8, Max: 8, Country: "Djibouti"},
	"254": {Min: 9, Max: 9, Country: "Kenya"},
	"255": {Min: 9, Max: 9, Country: "Tanzania"},
	"256": {Min: 9, Max: 9, Country: "Uganda"},
	"257": {Min: 8, Max: 8, Country: "Burundi"},
	"258": {Min: 9, Max: 9, Country: "Mozambique"},
	"260": {Min: 9, Max: 9, Country: "Zambia"},
	"261": {Min: 9, Max: 9, Country: "Madagascar"},
	"262": {Min: 9, Max: 9, Country: "Reunion"},
	"263": {Min: 9, Max: 9, Country: "Zimbabwe"},
	"264": {Min: 9, Max: 9, Country: "Namibia"},
	"265": {Min: 9, Max: 9, Country: "Malawi"},
	"266": {Min: 8, Max: 8, Country: "Lesotho"},
	"267": {Min: 8, Max: 8, Country: "Botswana"},
	"268": {Min: 8, Max: 8, Country: "Eswatini"},
	"269": {Min: 7, Max: 7, Country: "Comoros"},
	"27":  {Min: 9, Max: 9, Country: "South Africa"},
	"290": {Min: 4, Max: 4, Country: "Saint Helena"},
	"291": {Min: 7, Max: 7, Country: "Eritrea"},
	"297": {Min: 7, Max: 7, Country: "Aruba"},
	"298": {Min: 6, Max: 6, Country: "Faroe Islands"},
	"299": {Min: 6, Max: 6, Country: "Greenland"},
	"30":  {Min: 10, Max: 10, Country: "Greece"},
	"351": {Min: 9, Max: 9, Country: "Portugal"},
	"352": {Min: 9, Max: 9, Country: "Luxembourg"},
	"353": {Min: 9, Max: 9, Country: "Ireland"},
	"354": {Min: 7, Max: 7, Country: "Iceland"},
	"355": {Min: 9, Max: 9, Country: "Albania"},
	"356": {Min: 8, Max: 8, Country: "Malta"},
	"357": {Min: 8, Max: 8, Country: "Cyprus"},
	"358": {Min: 9, Max: 10, Country: "Finland"},
	"359": {Min: 9, Max: 9, Country: "Bulgaria"},
	"36":  {Min: 9, Max: 9, Country: "Hungary"},
	"370": {Min: 8, Max: 8, Country: "Lithuania"},
	"371": {Min: 8, Max: 8, Country: "Latvia"},
	"372": {Min: 7, Max: 8, Country: "Estonia"},
	"373": {Min: 8, Max: 8, Country: "Moldova"},
	"374": {Min: 8, Max: 8, Country: "Armenia"},
	"375": {Min: 9, Max: 9, Country: "Belarus"},
	"376": {Min: 6, Max: 6, Country: "Andorra"},
	"377": {Min: 9, Max: 9, Country: "Monaco"},
	"378": {Min: 6, Max: 10, Country: "San Marino"},
	"380": {Min: 9, Max: 9, Country: "Ukraine"},
	"381": {Min: 9, Max: 9, Country: "Serbia"},
	"382": {Min: 8, Max: 8, Country: "Montenegro"},
	"383": {Min: 8, Max: 8, Country: "Kosovo"},
	"385": {Min: 8, Max: 9, Country: "Croatia"},
	"386": {Min: 8, Max: 8, Country: "Slovenia"},
	"387": {Min: 8, Max: 8, Country: "Bosnia and Herzegovina"},
	"389": {Min: 8, Max: 8, Country: "North Macedonia"},
	"40":  {Min: 9, Max: 9, Country: "Romania"},
	"41":  {Min: 9, Max: 9, Country: "Switzerland"},
	"420": {Min: 9, Max: 9, Country: "Czech Republic"},
	"421": {Min: 9, Max: 9, Country: "Slovakia"},
	"423": {Min: 7, Max: 7, Country: "Liechtenstein"},
	"43":  {Min: 10, Max: 13, Country: "Austria"},
	"45":  {Min: 8, Max: 8, Country: "Denmark"},
	"46":  {Min: 9, Max: 9, Country: "Sweden"},
	"47":  {Min: 8, Max: 8, Country: "Norway"},
	"48":  {Min: 9, Max: 9, Country: "Poland"},
	"51":  {Min: 9, Max: 9, Country: "Peru"},
	"52":  {Min: 10, Max: 10, Country: "Mexico"},
	"53":  {Min: 8, Max: 8, Country: "Cuba"},
	"54":  {Min: 10, Max: 10, Country: "Argentina"},
	"55":  {Min: 10, Max: 11, Country: "Brazil"},
	"56":  {Min: 9, Max: 9, Country: "Chile"},
	"57":  {Min: 10, Max: 10, Country: "Colombia"},
	"58":  {Min: 10, Max: 10, Country: "Venezuela"},
	"60":  {Min: 9, Max: 10, Country: "Malaysia"},
	"61":  {Min: 9, Max: 9, Country: "Australia"},
	"62":  {Min: 9, Max: 11, Country: "Indonesia"},
	"63":  {Min: 10, Max: 10, Country: "Philippines"},
	"64":  {Min: 8, Max: 10, Country: "New Zealand"},
	"65":  {Min: 8, Max: 8, Country: "Singapore"},
	"66":  {Min: 9, Max: 9, Country: "Thailand"},
	"84":  {Min: 9, Max: 10, Country: "Vietnam"},
	"90":  {Min: 10, Max: 10, Country: "Turkey"},
	"92":  {Min: 10, Max: 10, Country: "Pakistan"},
	"93":  {Min: 9, Max: 9, Country: "Afghanistan"},
	"94":  {Min: 9, Max: 9, Country: "Sri Lanka"},
	"95":  {Min: 8, Max: 10, Country: "Myanmar"},
	"98":  {Min: 10, Max: 10, Country: "Iran"},
	"971": {Min: 9, Max: 9, Country: "United Arab Emirates"},
	"972": {Min: 9, Max: 9, Country: "Israel"},
	"973": {Min: 8, Max: 8, Country: "Bahrain"},
	"974": {Min: 8, Max: 8, Country: "Qatar"},
	"975": {Min: 8, Max: 8, Country: "Bhutan"},
	"976": {Min: 8, Max: 8, Country: "Mongolia"},
	"977": {Min: 10, Max: 10, Country: "Nepal"},
	"992": {Min: 9, Max: 9, Country: "Tajikistan"},
	"993": {Min: 8, Max: 8, Country: "Turkmenistan"},
	"994": {Min: 9, Max: 9, Country: "Azerbaijan"},
	"995": {Min: 9, Max: 9, Country: "Georgia"},
	"996": {Min: 9, Max: 9, Country: "Kyrgyzstan"},
	"998": {Min: 9, Max: 9, Country: "Uzbekistan"},
}
